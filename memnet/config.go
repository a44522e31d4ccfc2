package memnet

import "fmt"

// Tying is the hop forwarding strategy of a memory network.
type Tying byte

const (
	// NoTying is the abstract base network. It cannot be built.
	NoTying Tying = iota
	// RNNLike shares every hop parameter (the A-C layer and H) across hops.
	RNNLike
)

func (t Tying) String() string {
	switch t {
	case NoTying:
		return "NoTying"
	case RNNLike:
		return "RNNLike"
	}
	return fmt.Sprintf("Tying(%d)", byte(t))
}

// Config configures the memory network
type Config struct {
	Hops        int     // number of hops
	Dim         int     // width of query and memory vectors
	ReluDim     int     // number of trailing elements that are rectified after every hop
	MemorySize  int     // number of memory slots
	VocabSize   int     // vocabulary size of all embeddings and of the final matrix
	NeedH       bool    // use a tied H in the recurrence u' = uH + o
	DropoutRate float64 // dropout rate applied to the output of every hop
	Variational bool    // share one dropout mask across all hops

	QueryEmbedding bool // embed the query with B before the first hop
	Tying          Tying

	BatchSize int     // batch size
	LearnRate float64 // learn rate of the trainer
	FwdOnly   bool    // is this a fwd only graph?
}

// DefaultConf returns the default configuration of an RNN-like memory network over the given vocabulary.
func DefaultConf(vocabSize int) Config {
	return Config{
		Hops:       1,
		Dim:        100,
		ReluDim:    50,
		MemorySize: 100,
		VocabSize:  vocabSize,
		NeedH:      true,
		Tying:      RNNLike,

		BatchSize: 32,
		LearnRate: 0.01,
	}
}

// Validate checks the configuration and returns a *ConfigError describing the first illegal field.
func (conf Config) Validate() error {
	switch {
	case conf.Dim <= 0:
		return &ConfigError{Field: "Dim", Value: conf.Dim, Reason: "must be positive"}
	case conf.ReluDim < 0 || conf.ReluDim > conf.Dim:
		return &ConfigError{Field: "ReluDim", Value: conf.ReluDim, Reason: fmt.Sprintf("must be within [0, %d]", conf.Dim)}
	case conf.Hops < 0:
		return &ConfigError{Field: "Hops", Value: conf.Hops, Reason: "must not be negative"}
	case conf.MemorySize <= 0:
		return &ConfigError{Field: "MemorySize", Value: conf.MemorySize, Reason: "must be positive"}
	case conf.VocabSize <= 0:
		return &ConfigError{Field: "VocabSize", Value: conf.VocabSize, Reason: "must be positive"}
	case conf.DropoutRate < 0 || conf.DropoutRate >= 1:
		return &ConfigError{Field: "DropoutRate", Value: conf.DropoutRate, Reason: "must be within [0, 1)"}
	case conf.BatchSize < 1:
		return &ConfigError{Field: "BatchSize", Value: conf.BatchSize, Reason: "must be positive"}
	case conf.LearnRate < 0:
		return &ConfigError{Field: "LearnRate", Value: conf.LearnRate, Reason: "must not be negative"}
	}
	return nil
}

func (conf Config) IsValid() bool { return conf.Validate() == nil }

// keepProb is the probability of an element surviving dropout.
func (conf Config) keepProb() float64 { return 1 - conf.DropoutRate }
