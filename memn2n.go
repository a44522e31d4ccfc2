package memn2n

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gorgonia/memn2n/memnet"
	"github.com/gorgonia/memn2n/task"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// QA is the top level structure and the entry point of the API.
// It learns a question answering task with an end-to-end memory network.
type QA struct {
	// state
	*Agent
	Statistics
	useDummy bool

	// config
	task        task.Task
	name        string
	nnConf      memnet.Config
	maxExamples int
	r           *rand.Rand

	epoch  int
	outEnc OutputEncoder
	buf    bytes.Buffer
	logger *log.Logger
}

// New creates a QA structure for the given task. It panics if the configuration is unusable.
func New(t task.Task, conf Config) *QA {
	if err := conf.NNConf.Validate(); err != nil {
		panic(fmt.Sprintf("NNConf is not valid. Unable to proceed: %v", err))
	}
	if conf.NNConf.VocabSize != t.Vocab().Size() {
		panic(fmt.Sprintf("NNConf is over %d words but the task has %d", conf.NNConf.VocabSize, t.Vocab().Size()))
	}
	if conf.Encoder == nil {
		conf.Encoder = EncodeStory
	}
	name := conf.Name
	if name == "" {
		name = t.Name()
	}

	n := memnet.New(conf.NNConf)
	if err := n.Init(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	a, err := newAgent(n, conf.Encoder, t.Vocab(), conf.CacheSize)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	a.name = "A"

	retVal := &QA{
		Agent:       a,
		Statistics:  makeStatistics(),
		useDummy:    true,
		task:        t,
		name:        name,
		nnConf:      conf.NNConf,
		maxExamples: conf.MaxExamples,
		r:           rand.New(rand.NewSource(time.Now().UnixNano())),
		outEnc:      conf.OutputEncoder,
	}
	retVal.logger = log.New(&retVal.buf, "", log.Ltime)
	return retVal
}

// Epoch returns the current epoch.
func (q *QA) Epoch() int { return q.epoch }

// Baseline measures an agent that answers without looking at anything.
func (q *QA) Baseline(examples int) (Evaluation, error) {
	q.Agent.useDummy()
	ev, _, err := Evaluate(q.Agent, q.task.Generate(q.r, examples))
	q.Agent.resetStats()
	return ev, err
}

// Learn learns for the given number of epochs. Every epoch trains the network on freshly generated examples
// for nniters iterations, and then evaluates it on evalExamples new ones.
func (q *QA) Learn(epochs, examples, nniters, evalExamples int) error {
	var err error
	if q.useDummy {
		var ev Evaluation
		if ev, err = q.Baseline(evalExamples); err != nil {
			return errors.WithMessage(err, "Baseline fail")
		}
		log.Printf("Baseline accuracy of %q: %v", q.name, ev.Accuracy)
		q.useDummy = false
	}

	for q.epoch = 0; q.epoch < epochs; q.epoch++ {
		log.Printf("Training epoch %d of %q. Agent %s NN %p", q.epoch, q.name, q.Agent.name, q.NN)
		q.buf.Reset()
		q.logger.Printf("Training epoch %d", q.epoch)

		exs := q.task.Generate(q.r, examples)
		if q.maxExamples > 0 && len(exs) > q.maxExamples {
			exs = exs[:q.maxExamples]
		}
		var train memnet.Examples
		var batches int
		if train, batches, err = q.prepareExamples(exs); err != nil {
			return err
		}

		var cost float32
		if cost, err = memnet.Train(q.NN, train, batches, nniters); err != nil {
			return errors.WithMessage(err, "Train fail")
		}
		q.logger.Printf("Cost %v", cost)

		if err = q.SwitchToInference(); err != nil {
			return err
		}
		q.Agent.resetStats()
		var ev Evaluation
		var answers []Answer
		test := q.task.Generate(q.r, evalExamples)
		if ev, answers, err = Evaluate(q.Agent, test); err != nil {
			return errors.WithMessage(err, "Evaluate fail")
		}
		q.update(q.epoch, cost, ev)
		log.Printf("Epoch %d: cost %v, accuracy %v, supporting attention %v", q.epoch, cost, ev.Accuracy, ev.Supported)

		if q.outEnc == nil {
			continue
		}
		for i := range answers {
			s := Snapshot{
				Name:     q.name,
				RunID:    q.RunID,
				Epoch:    q.epoch,
				Accuracy: ev.Accuracy,
				Example:  test[i],
				Answer:   answers[i],
			}
			if err = q.outEnc.Encode(s); err != nil {
				return errors.WithMessage(err, "Encode fail")
			}
		}
	}
	return nil
}

// Answer answers a single question.
func (q *QA) Answer(ex task.Example) (Answer, error) {
	answers, err := q.Agent.Answer([]task.Example{ex})
	if err != nil {
		return Answer{}, err
	}
	return answers[0], nil
}

// Log returns the log of the latest epoch.
func (q *QA) Log() string { return q.buf.String() }

// Save learning into filename
func (q *QA) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(q.NN)
}

// Checkpoint saves the network into dir, under a name unique to the run and the epoch. It returns the filename.
func (q *QA) Checkpoint(dir string) (string, error) {
	filename := filepath.Join(dir, fmt.Sprintf("%s-%d.model", q.RunID, q.epoch))
	if err := q.Save(filename); err != nil {
		return "", err
	}
	q.Checkpoints[q.epoch] = filename
	return filename, nil
}

// Load the network from a filename, and switch to inference.
func (q *QA) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	q.NN = memnet.New(q.nnConf)
	dec := gob.NewDecoder(f)
	if err = dec.Decode(q.NN); err != nil {
		return errors.WithStack(err)
	}
	q.useDummy = false
	return q.SwitchToInference()
}

func (q *QA) prepareExamples(exs []task.Example) (ex memnet.Examples, batches int, err error) {
	conf := q.nnConf
	batches = len(exs) / conf.BatchSize
	if batches == 0 {
		return ex, 0, errors.Errorf("%d examples do not make a single batch of %d", len(exs), conf.BatchSize)
	}
	total := batches * conf.BatchSize
	vocab := q.task.Vocab()
	var queries, memories, targets []float32
	for i, e := range exs {
		if i >= total {
			break
		}
		var query, memory []float32
		if query, memory, err = q.Enc(e, vocab, conf); err != nil {
			return ex, 0, errors.WithMessagef(err, "unable to encode example %d", i)
		}
		id, ok := vocab.ID(e.Answer)
		if !ok {
			return ex, 0, errors.Errorf("answer %q of example %d is not in the vocabulary", e.Answer, i)
		}
		queries = append(queries, query...)
		memories = append(memories, memory...)

		start := len(targets)
		targets = append(targets, make([]float32, conf.VocabSize)...)
		targets[start+id] = 1
	}

	ex = memnet.Examples{
		Queries:  tensor.New(tensor.WithBacking(queries), tensor.WithShape(total, conf.VocabSize)),
		Memories: tensor.New(tensor.WithBacking(memories), tensor.WithShape(total, conf.MemorySize, conf.VocabSize)),
		Targets:  tensor.New(tensor.WithBacking(targets), tensor.WithShape(total, conf.VocabSize)),
	}
	return ex, batches, nil
}
