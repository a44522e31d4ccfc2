package memn2n

import (
	"io"

	"github.com/gorgonia/memn2n/memnet"
	"github.com/gorgonia/memn2n/task"
)

type Config struct {
	Name        string
	NNConf      memnet.Config
	MaxExamples int   // maximum number of training examples per epoch
	CacheSize   int64 // number of answers an agent memoizes. 0 turns the cache off

	// extensions
	Encoder       StoryEncoder
	OutputEncoder OutputEncoder
}

// DefaultConfig is a configuration for a task whose stories have the given number of sentences.
func DefaultConfig(t task.Task, length int) Config {
	nnConf := memnet.DefaultConf(t.Vocab().Size())
	nnConf.Hops = 3
	nnConf.Dim = 20
	nnConf.ReluDim = 10
	nnConf.MemorySize = length
	nnConf.QueryEmbedding = true
	nnConf.LearnRate = 0.01
	return Config{
		Name:      t.Name(),
		NNConf:    nnConf,
		CacheSize: 1 << 12,
		Encoder:   EncodeStory,
	}
}

// StoryEncoder encodes the question and the story of an example as a query and a soft memory
// of Config.MemorySize slots.
type StoryEncoder func(ex task.Example, v *task.Vocab, conf memnet.Config) (query, memory []float32, err error)

// OutputEncoder encodes the state of learning as whatever.
//
// An example OutputEncoder is the GifEncoder. Another example would be a logger.
type OutputEncoder interface {
	Encode(s Snapshot) error
	Flush() error
}

// Snapshot is an answered question, along with where the network looked to answer it.
type Snapshot struct {
	Name     string
	RunID    string
	Epoch    int
	Accuracy float32 // accuracy of the epoch

	Example task.Example
	Answer  Answer
}

// Netter is an interface for anything that allows getting out a *Net.
//
// Its sole purpose is to form a monoid-ish data structure for Agent.NN
type Netter interface {
	Net() *memnet.Net
}

// Inferer is anything that can infer given an input.
type Inferer interface {
	Infer(in memnet.Input) (*memnet.Output, error)
	io.Closer
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}
