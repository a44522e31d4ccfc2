package memnet

import (
	"bytes"
	"log"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Examples is a set of training examples, stored row-wise. The first axis of every tensor is the example.
type Examples struct {
	Queries  *tensor.Dense // (N, dim), or (N, vocab) when the query is embedded
	Memories *tensor.Dense // (N, memory size, vocab)
	Targets  *tensor.Dense // (N, vocab), one-hot
}

// Len returns the number of examples.
func (ex Examples) Len() int { return ex.Queries.Shape()[0] }

// Train is a basic trainer. It returns the mean cost of the last iteration.
func Train(n *Net, ex Examples, batches, iterations int) (cost float32, err error) {
	if n.FwdOnly {
		return 0, errors.New("cannot train a forward only network")
	}
	if need := batches * n.BatchSize; ex.Len() < need {
		return 0, errors.Errorf("%d batches of %d need %d examples. Got %d", batches, n.BatchSize, need, ex.Len())
	}
	if err = n.SetTraining(); err != nil {
		return 0, err
	}

	m := G.NewTapeMachine(n.g, G.BindDualValues(n.Model()...))
	defer m.Close()
	model := G.NodesToValueGrads(n.Model())
	solver := G.NewAdamSolver(G.WithLearnRate(n.LearnRate), G.WithBatchSize(float64(n.BatchSize)))

	query, memory := n.inputTensors()
	target := tensor.New(tensor.WithShape(n.target.Shape().Clone()...), tensor.Of(Float))
	for i := 0; i < iterations; i++ {
		var total float32
		for bat := 0; bat < batches; bat++ {
			batchStart := bat * n.BatchSize
			batchEnd := batchStart + n.BatchSize

			rows(query, ex.Queries, batchStart, batchEnd)
			rows(memory, ex.Memories, batchStart, batchEnd)
			rows(target, ex.Targets, batchStart, batchEnd)

			m.Reset()
			G.Let(n.query, query)
			G.Let(n.memory, memory)
			G.Let(n.target, target)
			if err = m.RunAll(); err != nil {
				return 0, errors.Wrapf(err, "iteration %d batch %d", i, bat)
			}
			total += n.cost.Data().(float32)
			if err = solver.Step(model); err != nil {
				return 0, errors.Wrapf(err, "iteration %d batch %d", i, bat)
			}
		}
		cost = total / float32(batches)
		if err = shuffleBatch(ex.Queries, ex.Memories, ex.Targets); err != nil {
			return 0, err
		}
	}
	return cost, nil
}

// rows copies the examples [start, end) of src into dst.
func rows(dst, src *tensor.Dense, start, end int) {
	width := src.Shape().TotalSize() / src.Shape()[0]
	copy(dst.Data().([]float32), src.Data().([]float32)[start*width:end*width])
}

// shuffleBatch shuffles the examples, keeping each query with its memory and its target.
func shuffleBatch(qs, mems, targets *tensor.Dense) (err error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	oriMems := mems.Shape().Clone()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("%v %v %v", qs.Shape(), mems.Shape(), targets.Shape())
			panic(r)
		}
	}()
	if err = mems.Reshape(as2D(mems.Shape())...); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - reshape memories")
	}
	defer mems.Reshape(oriMems...)

	var matQs, matMems, matTargets [][]float32
	if matQs, err = native.MatrixF32(qs); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - queries")
	}
	if matMems, err = native.MatrixF32(mems); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - memories")
	}
	if matTargets, err = native.MatrixF32(targets); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - targets")
	}

	for i := range matQs {
		j := r.Intn(i + 1)
		swap(matQs[i], matQs[j])
		swap(matMems[i], matMems[j])
		swap(matTargets[i], matTargets[j])
	}
	return nil
}

func swap(a, b []float32) {
	for i := range a {
		a[i], b[i] = b[i], a[i]
	}
}

func as2D(s tensor.Shape) tensor.Shape {
	retVal := make(tensor.Shape, 2)
	retVal[0] = s[0]
	retVal[1] = s[1]
	for i := 2; i < len(s); i++ {
		retVal[1] *= s[i]
	}
	return retVal
}

// Inferencer is a struct that holds the state for a *Net and a VM. By using an Inferencer struct,
// there is no longer a need to create a VM every time an inference needs to be done.
type Inferencer struct {
	n *Net
	m G.VM

	query, memory *tensor.Dense
	buf           *bytes.Buffer
}

// Infer takes a trained *Net, and creates an inference data structure on a forward only copy of it.
// Dropout is off in the copy.
func Infer(n *Net, toLog bool) (*Inferencer, error) {
	conf := n.Config
	conf.FwdOnly = true
	n2 := New(conf, n.opts...)
	if err := n2.Init(); err != nil {
		return nil, err
	}
	if err := n2.SetTesting(); err != nil {
		return nil, err
	}
	if err := copyModel(n2.Model(), n.Model()); err != nil {
		return nil, err
	}
	return NewInferencer(n2, toLog)
}

// NewInferencer creates an inference data structure that runs the given *Net as it is, in whatever mode it is in.
func NewInferencer(n *Net, toLog bool) (*Inferencer, error) {
	if n.g == nil {
		return nil, errors.New("cannot infer with an uninitialized network. Call Init first")
	}
	retVal := &Inferencer{n: n, buf: new(bytes.Buffer)}
	retVal.query, retVal.memory = n.inputTensors()
	if n.target != nil {
		// the cost is computed along with everything else
		zero := tensor.New(tensor.WithShape(n.target.Shape().Clone()...), tensor.Of(Float))
		if err := G.Let(n.target, zero); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.m = G.NewTapeMachine(n.g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	} else {
		retVal.m = G.NewTapeMachine(n.g)
	}
	return retVal, nil
}

// Net implements Netter
func (m *Inferencer) Net() *Net { return m.n }

// Infer runs one forward pass over a batch. It never allocates parameters.
func (m *Inferencer) Infer(in Input) (*Output, error) {
	if err := m.n.encode(in, m.query, m.memory); err != nil {
		return nil, err
	}

	m.m.Reset()
	m.buf.Reset()
	G.Let(m.n.query, m.query)
	G.Let(m.n.memory, m.memory)
	if err := m.m.RunAll(); err != nil {
		return nil, err
	}

	return &Output{
		Logits:         copyValue(m.n.logitsValue),
		States:         copyValues(m.n.stateValues),
		PreActivations: copyValues(m.n.preactValues),
		Attention:      copyValues(m.n.attentionValues),
		Masks:          copyValues(m.n.maskValues),
		vocab:          m.n.VocabSize,
	}, nil
}

// ExecLog returns the execution log. If the Inferencer was created with toLog = false, then it will return an empty string
func (m *Inferencer) ExecLog() string { return m.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (m *Inferencer) Close() error { return m.m.Close() }

func copyValue(v G.Value) []float32 {
	if v == nil {
		return nil
	}
	return append([]float32(nil), v.Data().([]float32)...)
}

func copyValues(vs []G.Value) [][]float32 {
	retVal := make([][]float32, len(vs))
	for i, v := range vs {
		retVal[i] = copyValue(v)
	}
	return retVal
}
