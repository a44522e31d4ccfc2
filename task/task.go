package task

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Sentence is a tokenized sentence.
type Sentence []string

func (s Sentence) Format(f fmt.State, c rune) { fmt.Fprint(f, strings.Join(s, " ")) }

// Example is a question about a story.
type Example struct {
	Story    []Sentence // oldest first
	Question Sentence
	Answer   string

	// Supporting is the index of the sentence in Story that answers the question. -1 if unknown.
	Supporting int
}

func (ex Example) Format(s fmt.State, c rune) {
	for i, sent := range ex.Story {
		fmt.Fprintf(s, "%d %v\n", i+1, sent)
	}
	fmt.Fprintf(s, "%v? %s", ex.Question, ex.Answer)
}

// Key is a stable textual key of the story and the question.
func (ex Example) Key() string {
	var buf strings.Builder
	for _, sent := range ex.Story {
		buf.WriteString(strings.Join(sent, " "))
		buf.WriteByte('.')
	}
	buf.WriteString(strings.Join(ex.Question, " "))
	return buf.String()
}

// Task is a question answering task: a vocabulary and a generator of examples over it.
type Task interface {
	Name() string
	Vocab() *Vocab

	// Generate generates n examples.
	Generate(r *rand.Rand, n int) []Example
}

// Vocab maps words to ids. Id 0 is reserved for the empty word.
type Vocab struct {
	words []string
	ids   map[string]int
}

// NewVocab creates a new vocabulary from the given words. Duplicates are ignored and the words are sorted.
func NewVocab(words ...string) *Vocab {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	v := &Vocab{
		words: []string{""},
		ids:   map[string]int{"": 0},
	}
	for _, w := range sorted {
		v.Add(w)
	}
	return v
}

// Add adds a word and returns its id.
func (v *Vocab) Add(w string) int {
	if id, ok := v.ids[w]; ok {
		return id
	}
	id := len(v.words)
	v.words = append(v.words, w)
	v.ids[w] = id
	return id
}

// ID returns the id of a word.
func (v *Vocab) ID(w string) (int, bool) {
	id, ok := v.ids[w]
	return id, ok
}

// Word returns the word of an id. Unknown ids are the empty word.
func (v *Vocab) Word(id int) string {
	if id < 0 || id >= len(v.words) {
		return ""
	}
	return v.words[id]
}

// Size is the number of words, including the empty word.
func (v *Vocab) Size() int { return len(v.words) }

// Words returns every word, by id.
func (v *Vocab) Words() []string { return append([]string(nil), v.words...) }
