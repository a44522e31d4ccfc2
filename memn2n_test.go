package memn2n

import (
	"encoding/csv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorgonia/memn2n/task"
	"github.com/gorgonia/memn2n/task/locate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	snapshots []Snapshot
	flushed   bool
}

func (r *recorder) Encode(s Snapshot) error { r.snapshots = append(r.snapshots, s); return nil }
func (r *recorder) Flush() error            { r.flushed = true; return nil }

func smallQA(t *testing.T, out OutputEncoder) (*QA, *locate.Locate) {
	l := locate.Default(3)
	conf := DefaultConfig(l, 3)
	conf.NNConf.Dim = 8
	conf.NNConf.ReluDim = 4
	conf.NNConf.Hops = 2
	conf.NNConf.BatchSize = 4
	conf.NNConf.DropoutRate = 0.1
	conf.OutputEncoder = out
	return New(l, conf), l
}

func TestQA(t *testing.T) {
	rec := new(recorder)
	qa, l := smallQA(t, rec)
	defer qa.Close()

	if err := qa.Learn(2, 16, 2, 6); err != nil {
		t.Fatalf("%+v", err)
	}
	t.Logf("Log of the last epoch:\n%v", qa.Log())

	assert := assert.New(t)
	assert.Equal([]int{0, 1}, qa.Epochs)
	assert.Len(qa.Costs, 2)
	assert.Len(qa.Accuracy, 2)
	assert.Len(rec.snapshots, 12)
	for _, s := range rec.snapshots {
		assert.Equal(qa.RunID, s.RunID)
		assert.Len(s.Answer.Attention, 2)
		assert.Len(s.Answer.Logits, l.Vocab().Size())
		_, ok := l.Vocab().ID(s.Answer.Word)
		assert.True(ok)
	}
	assert.Equal(float32(6), qa.Correct+qa.Wrong)

	ex := l.Generate(rand.New(rand.NewSource(1)), 1)[0]
	a, err := qa.Answer(ex)
	require.NoError(t, err)

	// save, load and answer the same
	dir := t.TempDir()
	filename, err := qa.Checkpoint(dir)
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, qa.RunID+"-2.model"), filename)

	qa2, _ := smallQA(t, nil)
	defer qa2.Close()
	require.NoError(t, qa2.Load(filename))
	b, err := qa2.Answer(ex)
	require.NoError(t, err)
	assert.Equal(a.Logits, b.Logits)
	assert.Equal(a.Word, b.Word)

	// statistics
	stats := filepath.Join(dir, "stats.csv")
	require.NoError(t, qa.Dump(stats))
	f, err := os.Open(stats)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal([]string{"run", "epoch", "cost", "accuracy", "supported", "checkpoint"}, records[0])
	assert.Equal(qa.RunID, records[1][0])
	assert.Equal("1", records[2][1])
}

func TestBaseline(t *testing.T) {
	qa, _ := smallQA(t, nil)
	defer qa.Close()
	ev, err := qa.Baseline(10)
	require.NoError(t, err)
	assert.Equal(t, 10, ev.Total)
	assert.Equal(t, 0, ev.Correct, "the dummy always answers the empty word")
}

func TestAgentNotInInference(t *testing.T) {
	qa, l := smallQA(t, nil)
	defer qa.Close()
	_, err := qa.Answer(l.Generate(rand.New(rand.NewSource(2)), 1)[0])
	assert.Error(t, err)
}

func TestAgentAnswerBatches(t *testing.T) {
	qa, l := smallQA(t, nil)
	defer qa.Close()
	require.NoError(t, qa.SwitchToInference())

	// more than one batch, and a partial one
	exs := l.Generate(rand.New(rand.NewSource(3)), 9)
	answers, err := qa.Agent.Answer(exs)
	require.NoError(t, err)
	require.Len(t, answers, 9)

	// answering one at a time gives the same answers
	for i, ex := range exs {
		one, err := qa.Agent.Answer([]task.Example{ex})
		require.NoError(t, err)
		assert.InDeltaSlice(t, answers[i].Logits, one[0].Logits, 1e-5, "example %d", i)
		for k := range one[0].Attention {
			var sum float32
			for _, p := range one[0].Attention[k] {
				sum += p
			}
			assert.InDelta(t, 1, sum, 1e-5)
		}
	}

	ev, _, err := Evaluate(qa.Agent, exs)
	require.NoError(t, err)
	assert.Equal(t, 9, ev.Total)
	assert.True(t, ev.Supported >= 0 && ev.Supported <= 1)
}

func TestAgentSwitchWhileAnswering(t *testing.T) {
	qa, l := smallQA(t, nil)
	defer qa.Close()
	require.NoError(t, qa.SwitchToInference())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 5; i++ {
				if _, err := qa.Agent.Answer(l.Generate(r, 5)); err != nil {
					errs <- err
					return
				}
			}
		}(int64(w))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, qa.SwitchToInference())
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("%+v", err)
	}
}

func TestValidLogits(t *testing.T) {
	assert.True(t, validLogits([]float32{0, 1, -1}))
	assert.False(t, validLogits([]float32{0, float32(math.NaN())}))
	assert.False(t, validLogits([]float32{float32(math.Inf(-1))}))
}
