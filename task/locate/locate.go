package locate

import (
	"math/rand"

	"github.com/gorgonia/memn2n/task"
)

var (
	DefaultPeople = []string{"mary", "john", "sandra", "daniel"}
	DefaultPlaces = []string{"kitchen", "garden", "office", "bedroom", "hallway", "bathroom"}

	verbs = []string{"went", "moved", "journeyed", "travelled"}
)

var _ task.Task = &Locate{}

// Locate is a single supporting fact task: people move between places, and the question is where one
// of them is at the end of the story.
type Locate struct {
	people, places []string
	length         int
	vocab          *task.Vocab
}

// New creates a new Locate task whose stories have the given number of sentences.
func New(length int, people, places []string) *Locate {
	words := []string{"to", "the", "where", "is"}
	words = append(words, verbs...)
	words = append(words, people...)
	words = append(words, places...)
	return &Locate{
		people: people,
		places: places,
		length: length,
		vocab:  task.NewVocab(words...),
	}
}

// Default creates a Locate task over the default people and places.
func Default(length int) *Locate { return New(length, DefaultPeople, DefaultPlaces) }

func (l *Locate) Name() string { return "where is the person?" }

func (l *Locate) Vocab() *task.Vocab { return l.vocab }

// Generate generates n stories. The person asked about always appears in the story.
func (l *Locate) Generate(r *rand.Rand, n int) []task.Example {
	retVal := make([]task.Example, 0, n)
	for i := 0; i < n; i++ {
		story := make([]task.Sentence, l.length)
		last := make(map[string]int)
		for s := range story {
			who := l.people[r.Intn(len(l.people))]
			where := l.places[r.Intn(len(l.places))]
			verb := verbs[r.Intn(len(verbs))]
			story[s] = task.Sentence{who, verb, "to", "the", where}
			last[who] = s
		}

		// ask about someone in the story
		who := story[r.Intn(len(story))][0]
		supporting := last[who]
		retVal = append(retVal, task.Example{
			Story:      story,
			Question:   task.Sentence{"where", "is", who},
			Answer:     story[supporting][4],
			Supporting: supporting,
		})
	}
	return retVal
}
