package memnet

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ACLayer is the A-C operation of a memory network: the query attends over the input memory
// representation (A) and reads the attended output memory representation (C).
//
// One ACLayer is shared by every hop, so H is tied across hops. H is registered with the owner
// of the layer the first time the layer is applied and never again.
type ACLayer struct {
	H *G.Node // optional (dim, dim) transform of the query

	register func(*G.Node)
	built    bool
}

// NewACLayer creates an A-C layer. h may be nil. register is called with h exactly once.
func NewACLayer(h *G.Node, register func(*G.Node)) *ACLayer {
	return &ACLayer{H: h, register: register}
}

// Apply performs one hop. u is (batch, dim), m and c are (batch, memory size, dim).
// It returns the next query, of the same shape as u, and the attention over the memory slots.
func (l *ACLayer) Apply(u, m, c *G.Node) (next, attention *G.Node, err error) {
	if err = l.check(u, m, c); err != nil {
		return nil, nil, err
	}
	batch, slots, dim := m.Shape()[0], m.Shape()[1], m.Shape()[2]

	var mb maebe
	// p = softmax(m·u)
	q := mb.reshape(u, tensor.Shape{batch, dim, 1})
	scores := mb.bmm(m, q)
	scores = mb.reshape(scores, tensor.Shape{batch, slots})
	attention = mb.softmax(scores)

	// o = Σ p_i c_i
	p := mb.reshape(attention, tensor.Shape{batch, 1, slots})
	o := mb.bmm(p, c)
	o = mb.reshape(o, tensor.Shape{batch, dim})

	// u' = uH + o
	if l.H != nil {
		u = mb.mul(u, l.H)
	}
	next = mb.add(u, o)
	if mb.err != nil {
		return nil, nil, mb.err
	}

	if !l.built {
		if l.H != nil && l.register != nil {
			l.register(l.H)
		}
		l.built = true
	}
	return next, attention, nil
}

func (l *ACLayer) check(u, m, c *G.Node) error {
	ms := m.Shape()
	if ms.Dims() != 3 {
		return shapeErr("A-C layer input memory", tensor.Shape{-1, -1, -1}, ms)
	}
	if !c.Shape().Eq(ms) {
		return shapeErr("A-C layer output memory", ms, c.Shape())
	}
	want := tensor.Shape{ms[0], ms[2]}
	if !u.Shape().Eq(want) {
		return shapeErr("A-C layer query", want, u.Shape())
	}
	if l.H != nil {
		if want := (tensor.Shape{ms[2], ms[2]}); !l.H.Shape().Eq(want) {
			return shapeErr("A-C layer H", want, l.H.Shape())
		}
	}
	return nil
}
