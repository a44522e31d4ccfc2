package memn2n

import (
	"testing"

	"github.com/gorgonia/memn2n/memnet"
	"github.com/gorgonia/memn2n/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBagOfWords(t *testing.T) {
	v := task.NewVocab("mary", "went", "to", "the", "kitchen")
	bow := BagOfWords(task.Sentence{"mary", "went", "to", "the", "the", "unknown"}, v, nil)
	t.Logf("%v", bow)

	// "", kitchen, mary, the, to, went
	assert.InDeltaSlice(t, []float32{0, 0, 0.2, 0.4, 0.2, 0.2}, bow, 1e-6)

	// the preallocated slice is reused and cleared
	again := BagOfWords(task.Sentence{"kitchen"}, v, bow)
	assert.Equal(t, []float32{0, 1, 0, 0, 0, 0}, again)
	assert.Same(t, &bow[0], &again[0])

	assert.Equal(t, make([]float32, 6), BagOfWords(nil, v, nil))
}

func TestEncodeStory(t *testing.T) {
	v := task.NewVocab("mary", "john", "went", "garden", "kitchen", "where", "is")
	ex := task.Example{
		Story: []task.Sentence{
			{"mary", "went", "kitchen"},
			{"john", "went", "garden"},
			{"mary", "went", "garden"},
		},
		Question: task.Sentence{"where", "is", "mary"},
		Answer:   "garden",
	}
	size := v.Size()

	conf := memnet.DefaultConf(size)
	conf.MemorySize = 4
	conf.QueryEmbedding = true
	query, memory, err := EncodeStory(ex, v, conf)
	require.NoError(t, err)
	assert.Equal(t, BagOfWords(ex.Question, v, nil), query)
	require.Len(t, memory, 4*size)

	// latest sentence first, and an empty slot at the end
	assert.Equal(t, BagOfWords(ex.Story[2], v, nil), memory[:size])
	assert.Equal(t, BagOfWords(ex.Story[1], v, nil), memory[size:2*size])
	assert.Equal(t, BagOfWords(ex.Story[0], v, nil), memory[2*size:3*size])
	empty := make([]float32, size)
	empty[0] = 1
	assert.Equal(t, empty, memory[3*size:])

	// older sentences are forgotten
	conf.MemorySize = 2
	_, memory, err = EncodeStory(ex, v, conf)
	require.NoError(t, err)
	assert.Equal(t, BagOfWords(ex.Story[1], v, nil), memory[size:])

	conf.QueryEmbedding = false
	_, _, err = EncodeStory(ex, v, conf)
	assert.Error(t, err)

	conf.QueryEmbedding = true
	conf.VocabSize++
	_, _, err = EncodeStory(ex, v, conf)
	assert.Error(t, err)
}

func TestSlots(t *testing.T) {
	cases := []struct {
		i, storyLen, memorySize, slot int
	}{
		{0, 1, 3, 0},
		{2, 3, 3, 0},
		{0, 3, 3, 2},
		{0, 4, 3, -1},
		{1, 4, 3, 2},
	}
	for _, c := range cases {
		slot := SlotOf(c.i, c.storyLen, c.memorySize)
		assert.Equal(t, c.slot, slot, "%+v", c)
		if slot >= 0 {
			assert.Equal(t, c.i, SentenceOf(slot, c.storyLen), "%+v", c)
		}
	}
	assert.Equal(t, -1, SentenceOf(3, 3))
}

func TestMakeRows(t *testing.T) {
	flat := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	rows := MakeRows(flat, 2, 3)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, rows)

	// the rows are views
	rows[1][0] = 40
	assert.Equal(t, float32(40), flat[3])
	ReturnRows(rows)

	rows = MakeRows(flat, 2, 3)
	assert.Equal(t, []float32{40, 5, 6}, rows[1])
	ReturnRows(rows)

	assert.Panics(t, func() { MakeRows(flat, 3, 3) })
}
