package memnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Embedder turns weights over the vocabulary into dense vectors of width Config.Dim.
//
// Memories are fed as (batch, memory size, vocab) and queries as (batch, vocab). One-hot weights
// select embedding rows, soft weights mix them. The returned node replaces the vocab axis with Dim.
type Embedder interface {
	Embed(x *G.Node) (*G.Node, error)
}

// Learnabler is anything that owns learnable nodes.
type Learnabler interface {
	Learnables() G.Nodes
}

// EmbedderFn allocates an Embedder on a graph. It is called exactly once per graph, which is
// what ties the embedding across hops.
type EmbedderFn func(g *G.ExprGraph, name string, conf Config) (Embedder, error)

// WordEmbedding is a plain embedding matrix of shape (vocab, dim).
type WordEmbedding struct {
	W *G.Node
}

// NewWordEmbedding is an EmbedderFn for a WordEmbedding.
func NewWordEmbedding(g *G.ExprGraph, name string, conf Config) (Embedder, error) {
	return newWordEmbedding(g, name, conf), nil
}

func newWordEmbedding(g *G.ExprGraph, name string, conf Config) *WordEmbedding {
	w := G.NewMatrix(g, Float, G.WithShape(conf.VocabSize, conf.Dim), G.WithName(name+"_embedding"), G.WithInit(G.Gaussian(0, 0.1)))
	return &WordEmbedding{W: w}
}

func (e *WordEmbedding) Embed(x *G.Node) (*G.Node, error) {
	var m maebe
	retVal := e.lookup(&m, x)
	if m.err != nil {
		return nil, m.err
	}
	return retVal, nil
}

// lookup multiplies the last axis of x with the embedding matrix, keeping the leading axes.
func (e *WordEmbedding) lookup(m *maebe, x *G.Node) *G.Node {
	if m.err != nil {
		return nil
	}
	shp := x.Shape()
	vocab := e.W.Shape()[0]
	dim := e.W.Shape()[1]
	if shp[len(shp)-1] != vocab {
		want := shp.Clone()
		want[len(want)-1] = vocab
		m.err = shapeErr("embedding lookup", want, shp)
		return nil
	}
	switch shp.Dims() {
	case 2:
		return m.mul(x, e.W)
	case 3:
		flat := m.reshape(x, tensor.Shape{shp[0] * shp[1], vocab})
		embedded := m.mul(flat, e.W)
		return m.reshape(embedded, tensor.Shape{shp[0], shp[1], dim})
	}
	m.err = errors.Errorf("cannot embed a tensor of %d dims", shp.Dims())
	return nil
}

func (e *WordEmbedding) Learnables() G.Nodes { return G.Nodes{e.W} }

// TemporalEmbedding adds a learned embedding of each memory slot's position to the
// word embedding of its contents.
type TemporalEmbedding struct {
	*WordEmbedding
	T *G.Node // (memory size, dim)

	positions *G.Node // constant one-hot position of every flattened (batch, slot) row
}

// NewTemporalEmbedding is the default EmbedderFn for the A and C memory representations.
func NewTemporalEmbedding(g *G.ExprGraph, name string, conf Config) (Embedder, error) {
	slots := conf.MemorySize
	rows := conf.BatchSize * slots
	backing := make([]float32, rows*slots)
	for i := 0; i < rows; i++ {
		backing[i*slots+i%slots] = 1
	}
	pos := tensor.New(tensor.WithShape(rows, slots), tensor.WithBacking(backing))

	return &TemporalEmbedding{
		WordEmbedding: newWordEmbedding(g, name, conf),
		T:             G.NewMatrix(g, Float, G.WithShape(slots, conf.Dim), G.WithName(name+"_temporal"), G.WithInit(G.Gaussian(0, 0.1))),
		positions:     G.NewConstant(pos, G.WithName(name+"_positions")),
	}, nil
}

func (e *TemporalEmbedding) Embed(x *G.Node) (*G.Node, error) {
	shp := x.Shape()
	slots := e.T.Shape()[0]
	dim := e.T.Shape()[1]
	want := tensor.Shape{e.positions.Shape()[0] / slots, slots, e.W.Shape()[0]}
	if !shp.Eq(want) {
		return nil, shapeErr("temporal embedding", want, shp)
	}

	var m maebe
	flat := m.reshape(x, tensor.Shape{shp[0] * slots, shp[2]})
	embedded := m.mul(flat, e.W)
	temporal := m.mul(e.positions, e.T)
	embedded = m.add(embedded, temporal)
	embedded = m.reshape(embedded, tensor.Shape{shp[0], slots, dim})
	if m.err != nil {
		return nil, m.err
	}
	return embedded, nil
}

func (e *TemporalEmbedding) Learnables() G.Nodes { return G.Nodes{e.W, e.T} }
