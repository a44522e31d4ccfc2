package memn2n

import (
	"github.com/chewxy/math32"
	"github.com/gorgonia/memn2n/task"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// ErrNotFinite is returned when a network produces NaN or infinite logits.
var ErrNotFinite = errors.New("network produced logits that are not finite")

// Evaluation is how well an agent answered a set of examples.
type Evaluation struct {
	Correct, Total int
	Accuracy       float32

	// Supported is the share of answers whose strongest first hop attention fell on the supporting sentence.
	// Examples without a known supporting sentence are not counted.
	Supported float32
}

// Evaluate has the agent answer the examples and scores the answers.
func Evaluate(a *Agent, exs []task.Example) (Evaluation, []Answer, error) {
	var ev Evaluation
	answers, err := a.Answer(exs)
	if err != nil {
		return ev, nil, err
	}

	memorySize := a.NN.MemorySize
	var supported, supportable int
	for i, ans := range answers {
		if !validLogits(ans.Logits) {
			return ev, nil, errors.Wrapf(ErrNotFinite, "example %d: %v", i, exs[i])
		}
		ev.Total++
		if ans.Word == exs[i].Answer {
			ev.Correct++
		}

		if exs[i].Supporting < 0 || len(ans.Attention) == 0 {
			continue
		}
		slot := SlotOf(exs[i].Supporting, len(exs[i].Story), memorySize)
		if slot < 0 {
			continue
		}
		supportable++
		if vecf32.Argmax(ans.Attention[0]) == slot {
			supported++
		}
	}

	if ev.Total > 0 {
		ev.Accuracy = float32(ev.Correct) / float32(ev.Total)
	}
	if supportable > 0 {
		ev.Supported = float32(supported) / float32(supportable)
	}

	a.Lock()
	a.Correct += float32(ev.Correct)
	a.Wrong += float32(ev.Total - ev.Correct)
	a.Unlock()
	return ev, answers, nil
}

func validLogits(logits []float32) bool {
	for _, v := range logits {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
