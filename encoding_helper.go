package memn2n

import (
	"github.com/gorgonia/memn2n/memnet"
	"github.com/gorgonia/memn2n/task"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// BagOfWords encodes a sentence as the normalized counts of its words. Unknown words are ignored.
func BagOfWords(s task.Sentence, v *task.Vocab, prealloc []float32) []float32 {
	if len(prealloc) != v.Size() {
		prealloc = make([]float32, v.Size())
	} else {
		for i := range prealloc {
			prealloc[i] = 0
		}
	}

	for _, w := range s {
		if id, ok := v.ID(w); ok {
			prealloc[id]++
		}
	}
	if sum := vecf32.Sum(prealloc); sum > 0 {
		vecf32.Scale(prealloc, 1/sum)
	}
	return prealloc
}

// EncodeStory encodes the question as a bag of words, and the most recent sentences of the story
// as a soft memory. The latest sentence goes into slot 0. Slots without a sentence hold the empty word.
func EncodeStory(ex task.Example, v *task.Vocab, conf memnet.Config) (query, memory []float32, err error) {
	if !conf.QueryEmbedding {
		return nil, nil, errors.New("stories are encoded as bags of words, which the network must embed")
	}
	size := v.Size()
	if size != conf.VocabSize {
		return nil, nil, errors.Errorf("vocabulary of %d words does not fit a network over %d words", size, conf.VocabSize)
	}

	query = BagOfWords(ex.Question, v, nil)
	memory = make([]float32, conf.MemorySize*size)
	for slot := 0; slot < conf.MemorySize; slot++ {
		row := memory[slot*size : (slot+1)*size]
		i := SentenceOf(slot, len(ex.Story))
		if i < 0 {
			row[0] = 1
			continue
		}
		BagOfWords(ex.Story[i], v, row)
	}
	return query, memory, nil
}

// SlotOf returns the memory slot that holds the ith sentence of a story. It returns -1 if the
// sentence is too old to fit in memory.
func SlotOf(i, storyLen, memorySize int) int {
	slot := storyLen - 1 - i
	if slot < 0 || slot >= memorySize {
		return -1
	}
	return slot
}

// SentenceOf is the inverse of SlotOf. It returns -1 for an empty slot.
func SentenceOf(slot, storyLen int) int {
	if slot >= storyLen {
		return -1
	}
	return storyLen - 1 - slot
}
