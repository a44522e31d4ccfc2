package memnet

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// project maps the final (batch, dim) hop state to (batch, vocab) logits with the final matrix.
func project(u, w *G.Node) (*G.Node, error) {
	if u.Shape().Dims() != 2 || w.Shape().Dims() != 2 || u.Shape()[1] != w.Shape()[0] {
		want := tensor.Shape{-1, w.Shape()[0]}
		return nil, shapeErr("output projection", want, u.Shape())
	}
	var m maebe
	logits := m.mul(u, w)
	if m.err != nil {
		return nil, m.err
	}
	return logits, nil
}
