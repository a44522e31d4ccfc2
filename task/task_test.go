package task

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVocab(t *testing.T) {
	assert := assert.New(t)
	v := NewVocab("mary", "john", "kitchen", "mary")
	assert.Equal(4, v.Size())
	assert.Equal([]string{"", "john", "kitchen", "mary"}, v.Words())

	id, ok := v.ID("kitchen")
	assert.True(ok)
	assert.Equal(2, id)
	assert.Equal("kitchen", v.Word(id))

	_, ok = v.ID("garden")
	assert.False(ok)
	assert.Equal("", v.Word(100))
	assert.Equal("", v.Word(-1))

	assert.Equal(4, v.Add("garden"))
	assert.Equal(4, v.Add("garden"))
	assert.Equal(5, v.Size())
}

func TestExample(t *testing.T) {
	ex := Example{
		Story:      []Sentence{{"mary", "went", "to", "the", "kitchen"}, {"john", "went", "to", "the", "garden"}},
		Question:   Sentence{"where", "is", "mary"},
		Answer:     "kitchen",
		Supporting: 0,
	}
	assert.Equal(t, "1 mary went to the kitchen\n2 john went to the garden\nwhere is mary? kitchen", fmt.Sprintf("%v", ex))
	assert.Equal(t, "mary went to the kitchen.john went to the garden.where is mary", ex.Key())
}
