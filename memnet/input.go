package memnet

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Input is one batch of questions for a network. Every slice is laid out row major, batch first.
//
// Exactly one of Memory and Soft is set: Memory holds one vocabulary id per memory slot, Soft holds
// weights over the vocabulary for each slot (a bag of words, for instance).
type Input struct {
	Query  []float32 // batch × dim, or batch × vocab when the query is embedded
	Memory []int     // batch × memory size
	Soft   []float32 // batch × memory size × vocab
}

// Output is the result of one forward pass. Every slice is a copy, laid out row major, batch first.
type Output struct {
	Logits         []float32   // batch × vocab
	States         [][]float32 // Hops+1 states of batch × dim. States[0] is the query
	PreActivations [][]float32 // Hops states of batch × dim, before the rectifier and dropout
	Attention      [][]float32 // Hops distributions of batch × memory size
	Masks          [][]float32 // the dropout mask of each hop. Empty without dropout

	vocab int
}

// Answers returns the highest scoring word of each row of the batch.
func (o *Output) Answers() []int {
	if o.vocab == 0 {
		return nil
	}
	retVal := make([]int, 0, len(o.Logits)/o.vocab)
	for start := 0; start+o.vocab <= len(o.Logits); start += o.vocab {
		retVal = append(retVal, vecf32.Argmax(o.Logits[start:start+o.vocab]))
	}
	return retVal
}

// Row returns the logits of the bth question of the batch, or nil if there is no such question.
func (o *Output) Row(b int) []float32 {
	if o.vocab == 0 || b < 0 || (b+1)*o.vocab > len(o.Logits) {
		return nil
	}
	return o.Logits[b*o.vocab : (b+1)*o.vocab]
}

// encode writes the input into the preallocated query and memory tensors.
func (n *Net) encode(in Input, query, memory *tensor.Dense) error {
	switch {
	case in.Memory == nil && in.Soft == nil:
		return ErrNoMemory
	case in.Memory != nil && in.Soft != nil:
		return ErrAmbiguousMemory
	}

	qs := query.Shape()
	if len(in.Query) != qs.TotalSize() {
		return shapeErr("query", qs, tensor.Shape{len(in.Query)})
	}
	copy(query.Data().([]float32), in.Query)

	ms := memory.Shape()
	data := memory.Data().([]float32)
	if in.Soft != nil {
		if len(in.Soft) != ms.TotalSize() {
			return shapeErr("soft memory", ms, tensor.Shape{len(in.Soft)})
		}
		copy(data, in.Soft)
		return nil
	}

	slots, vocab := ms[0]*ms[1], ms[2]
	if len(in.Memory) != slots {
		return shapeErr("memory", ms[:2], tensor.Shape{len(in.Memory)})
	}
	memory.Zero()
	for i, id := range in.Memory {
		if id < 0 || id >= vocab {
			return errors.Errorf("memory slot %d holds id %d, which is outside of a vocabulary of %d", i, id, vocab)
		}
		data[i*vocab+id] = 1
	}
	return nil
}

func (n *Net) inputTensors() (query, memory *tensor.Dense) {
	query = tensor.New(tensor.WithShape(n.query.Shape().Clone()...), tensor.Of(Float))
	memory = tensor.New(tensor.WithShape(n.memory.Shape().Clone()...), tensor.Of(Float))
	return
}
