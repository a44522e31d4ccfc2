package memnet

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// hopController applies the shared A-C layer hop after hop. Every hop is followed by the
// partial rectifier and, when there is a dropout rate, by dropout.
type hopController struct {
	layer       *ACLayer
	hops        int
	dim         int
	reludim     int
	variational bool
	keep        *G.Node // scalar keep probability. nil means no dropout

	states    G.Nodes // u[0..hops]
	preact    G.Nodes // output of the A-C layer before activation and dropout, one per hop
	attention G.Nodes // one per hop
	masks     G.Nodes // the dropout mask applied at each hop
}

func (hc *hopController) run(u0, m, c *G.Node) error {
	if hc.reludim < 0 || hc.reludim > hc.dim {
		return errors.WithStack(&ConfigError{Field: "ReluDim", Value: hc.reludim, Reason: fmt.Sprintf("must be within [0, %d]", hc.dim)})
	}
	hc.states = append(hc.states[:0], u0)
	hc.preact = hc.preact[:0]
	hc.attention = hc.attention[:0]
	hc.masks = hc.masks[:0]

	// a variational mask lives for the whole loop. Otherwise the noise of every hop is one
	// slice of a single (hops, batch, dim) node: identical random nodes are merged by the graph.
	var shared, noise *G.Node
	if hc.keep != nil {
		shp := u0.Shape()
		if !hc.variational {
			noise = G.UniformRandomNode(u0.Graph(), Float, 0, 1, append(tensor.Shape{hc.hops}, shp...)...)
		} else {
			var mb maebe
			noise = G.UniformRandomNode(u0.Graph(), Float, 0, 1, shp...)
			if shared = hc.mask(&mb, noise); mb.err != nil {
				return mb.err
			}
		}
	}

	for k := 0; k < hc.hops; k++ {
		next, p, err := hc.layer.Apply(hc.states[k], m, c)
		if err != nil {
			return errors.Wrapf(err, "hop %d", k+1)
		}
		hc.preact = append(hc.preact, next)
		hc.attention = append(hc.attention, p)

		var mb maebe
		next = partialRectify(&mb, next, hc.reludim)
		if hc.keep != nil {
			mask := shared
			if mask == nil {
				hop := mb.do(func() (*G.Node, error) { return G.Slice(noise, G.S(k)) })
				mask = hc.mask(&mb, hop)
			}
			hc.masks = append(hc.masks, mask)
			next = dropout(&mb, next, mask, hc.keep)
		}
		if mb.err != nil {
			return errors.Wrapf(mb.err, "hop %d", k+1)
		}
		hc.states = append(hc.states, next)
	}
	return nil
}

// mask turns uniform noise into a 0/1 mask. An element is kept with probability keep.
func (hc *hopController) mask(m *maebe, noise *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Lt(noise, hc.keep, true) })
}

// partialRectify rectifies the trailing reludim elements of the (batch, dim) input and
// leaves the leading ones untouched.
func partialRectify(m *maebe, input *G.Node, reludim int) *G.Node {
	if m.err != nil {
		return nil
	}
	shp := input.Shape()
	dim := shp[1]
	switch {
	case reludim == 0:
		return input
	case reludim == dim:
		return m.rectify(input)
	}

	linear := make([]float32, shp.TotalSize())
	relu := make([]float32, shp.TotalSize())
	for i := range linear {
		if i%dim < dim-reludim {
			linear[i] = 1
		} else {
			relu[i] = 1
		}
	}
	linearMask := G.NewConstant(tensor.New(tensor.WithShape(shp.Clone()...), tensor.WithBacking(linear)), G.WithName(fmt.Sprintf("linear_%d_of_%d", dim-reludim, dim)))
	reluMask := G.NewConstant(tensor.New(tensor.WithShape(shp.Clone()...), tensor.WithBacking(relu)), G.WithName(fmt.Sprintf("relu_%d_of_%d", reludim, dim)))

	rectified := m.rectify(input)
	lin := m.hadamard(input, linearMask)
	rel := m.hadamard(rectified, reluMask)
	return m.add(lin, rel)
}

// dropout zeroes the elements that are off in the mask and scales the survivors by 1/keep.
func dropout(m *maebe, input, mask, keep *G.Node) *G.Node {
	kept := m.hadamard(input, mask)
	return m.do(func() (*G.Node, error) { return G.Div(kept, keep) })
}
