package memnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	nnops "gorgonia.org/gorgonia/ops/nn"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = nnops.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) reshape(input *G.Node, to tensor.Shape) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Reshape(input, to); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) bmm(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.BatchedMatMul(a, b) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) hadamard(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

// softmax normalizes a matrix along its last axis. The row maximum is subtracted
// before exponentiating.
func (m *maebe) softmax(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	last := input.Shape().Dims() - 1
	max := m.do(func() (*G.Node, error) { return G.Max(input, last) })
	shifted := m.do(func() (*G.Node, error) { return G.BroadcastSub(input, max, nil, []byte{byte(last)}) })
	return m.do(func() (*G.Node, error) { return G.SoftMax(shifted) })
}

// xent is the mean softmax cross entropy of the logits against a one-hot target.
// The log probabilities are shifted - log(sum(exp(shifted))), which stays finite for large logits.
func (m *maebe) xent(logits, target *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	last := logits.Shape().Dims() - 1
	max := m.do(func() (*G.Node, error) { return G.Max(logits, last) })
	shifted := m.do(func() (*G.Node, error) { return G.BroadcastSub(logits, max, nil, []byte{byte(last)}) })
	exp := m.do(func() (*G.Node, error) { return G.Exp(shifted) })
	sum := m.do(func() (*G.Node, error) { return G.Sum(exp, last) })
	lse := m.do(func() (*G.Node, error) { return G.Log(sum) })
	logProb := m.do(func() (*G.Node, error) { return G.BroadcastSub(shifted, lse, nil, []byte{byte(last)}) })
	ll := m.hadamard(target, logProb)
	ll = m.do(func() (*G.Node, error) { return G.Sum(ll, 1) })
	ll = m.do(func() (*G.Node, error) { return G.Mean(ll) })
	return m.do(func() (*G.Node, error) { return G.Neg(ll) })
}
