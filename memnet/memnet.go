package memnet

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// Net is an end-to-end memory network.
//
// The query is refined by Hops applications of one shared A-C layer over a memory that is
// embedded once per pass, and the final query is projected onto the vocabulary.
type Net struct {
	Config
	opts []Option

	inputFn, outputFn, queryFn EmbedderFn
	projection                 *tensor.Dense

	g          *G.ExprGraph
	learnables G.Nodes
	registered map[*G.Node]struct{}

	A, C, B Embedder
	H       *G.Node // tied transform, nil unless NeedH
	final   *G.Node // (dim, vocab)
	keep    *G.Node // keep probability of dropout, nil without dropout

	query  *G.Node // (batch, dim), or (batch, vocab) when the query is embedded
	memory *G.Node // (batch, memory size, vocab)
	target *G.Node // (batch, vocab) one-hot answers
	hops   *hopController
	logits *G.Node

	logitsValue     G.Value
	stateValues     []G.Value
	preactValues    []G.Value
	attentionValues []G.Value
	maskValues      []G.Value
	cost            G.Value
}

// Option configures the collaborators of a Net.
type Option func(*Net)

// WithInputEmbedder sets the A operation. The default is NewTemporalEmbedding.
func WithInputEmbedder(fn EmbedderFn) Option { return func(n *Net) { n.inputFn = fn } }

// WithOutputEmbedder sets the C operation. The default is NewTemporalEmbedding.
func WithOutputEmbedder(fn EmbedderFn) Option { return func(n *Net) { n.outputFn = fn } }

// WithQueryEmbedder sets the B operation used when Config.QueryEmbedding is set. The default is NewWordEmbedding.
func WithQueryEmbedder(fn EmbedderFn) Option { return func(n *Net) { n.queryFn = fn } }

// WithProjection seeds the (dim, vocab) final matrix instead of initializing it randomly.
func WithProjection(t *tensor.Dense) Option { return func(n *Net) { n.projection = t } }

// New returns a new, uninitialized *Net.
func New(conf Config, opts ...Option) *Net {
	retVal := &Net{
		Config:   conf,
		opts:     opts,
		inputFn:  NewTemporalEmbedding,
		outputFn: NewTemporalEmbedding,
		queryFn:  NewWordEmbedding,
	}
	for _, opt := range opts {
		opt(retVal)
	}
	return retVal
}

// Init validates the configuration, allocates every parameter once and builds the graph.
func (n *Net) Init() error {
	if err := n.Validate(); err != nil {
		return err
	}
	switch n.Tying {
	case NoTying:
		return errors.Wrapf(ErrNotImplemented, "cannot build a network with %v", n.Tying)
	case RNNLike:
	default:
		return errors.Errorf("unknown tying %v", n.Tying)
	}

	n.reset()
	n.g = G.NewGraph()
	if err := n.fwd(); err != nil {
		return err
	}
	return n.bwd()
}

func (n *Net) fwd() (err error) {
	batch := n.BatchSize
	queryWidth := n.Dim
	if n.QueryEmbedding {
		queryWidth = n.VocabSize
	}
	n.query = G.NewMatrix(n.g, Float, G.WithShape(batch, queryWidth), G.WithName("Query"))
	n.memory = G.NewTensor(n.g, Float, 3, G.WithShape(batch, n.MemorySize, n.VocabSize), G.WithName("Memory"))

	// the query
	u0 := n.query
	if n.QueryEmbedding {
		if n.B, err = n.embedder(n.queryFn, "B", true); err != nil {
			return err
		}
		if u0, err = n.B.Embed(n.query); err != nil {
			return errors.WithMessage(err, "B")
		}
		if want := (tensor.Shape{batch, n.Dim}); !u0.Shape().Eq(want) {
			return shapeErr("embedded query", want, u0.Shape())
		}
	}

	// the memory. The embeddings are dead weight without hops.
	used := n.Hops > 0
	if n.A, err = n.embedder(n.inputFn, "A", used); err != nil {
		return err
	}
	if n.C, err = n.embedder(n.outputFn, "C", used); err != nil {
		return err
	}
	mem := tensor.Shape{batch, n.MemorySize, n.Dim}
	var m, c *G.Node
	if m, err = n.A.Embed(n.memory); err != nil {
		return errors.WithMessage(err, "A")
	}
	if !m.Shape().Eq(mem) {
		return shapeErr("input memory representation", mem, m.Shape())
	}
	if c, err = n.C.Embed(n.memory); err != nil {
		return errors.WithMessage(err, "C")
	}
	if !c.Shape().Eq(mem) {
		return shapeErr("output memory representation", mem, c.Shape())
	}

	// the hops
	if n.NeedH {
		n.H = G.NewMatrix(n.g, Float, G.WithShape(n.Dim, n.Dim), G.WithName("H"), G.WithInit(G.Gaussian(0, 0.1)))
	}
	if n.DropoutRate > 0 && n.Hops > 0 {
		n.keep = G.NewScalar(n.g, Float, G.WithName("KeepProb"), G.WithValue(f32(float32(n.keepProb()))))
	}
	n.hops = &hopController{
		layer:       NewACLayer(n.H, n.register),
		hops:        n.Hops,
		dim:         n.Dim,
		reludim:     n.ReluDim,
		variational: n.Variational,
		keep:        n.keep,
	}
	if err = n.hops.run(u0, m, c); err != nil {
		return err
	}

	// the final matrix
	if n.final, err = n.newFinal(); err != nil {
		return err
	}
	n.register(n.final)
	if n.logits, err = project(n.hops.states[len(n.hops.states)-1], n.final); err != nil {
		return err
	}

	G.Read(n.logits, &n.logitsValue)
	n.stateValues = readAll(n.hops.states)
	n.preactValues = readAll(n.hops.preact)
	n.attentionValues = readAll(n.hops.attention)
	n.maskValues = readAll(n.hops.masks)
	return nil
}

func (n *Net) bwd() error {
	if n.FwdOnly {
		return nil
	}
	n.target = G.NewMatrix(n.g, Float, G.WithShape(n.BatchSize, n.VocabSize), G.WithName("Target"))

	var m maebe
	cost := m.xent(n.logits, n.target)
	if m.err != nil {
		return m.err
	}
	G.Read(cost, &n.cost)

	if _, err := G.Grad(cost, n.Model()...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (n *Net) embedder(fn EmbedderFn, name string, register bool) (Embedder, error) {
	if fn == nil {
		return nil, errors.Errorf("no embedder for %s", name)
	}
	e, err := fn(n.g, name, n.Config)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	if l, ok := e.(Learnabler); ok && register {
		for _, w := range l.Learnables() {
			n.register(w)
		}
	}
	return e, nil
}

func (n *Net) newFinal() (*G.Node, error) {
	shp := tensor.Shape{n.Dim, n.VocabSize}
	if n.projection == nil {
		return G.NewMatrix(n.g, Float, G.WithShape(shp...), G.WithName("FinalMatrix"), G.WithInit(G.GlorotN(1.0))), nil
	}
	if !n.projection.Shape().Eq(shp) {
		return nil, shapeErr("final matrix", shp, n.projection.Shape())
	}
	v := n.projection.Clone().(*tensor.Dense)
	return G.NewMatrix(n.g, Float, G.WithShape(shp...), G.WithName("FinalMatrix"), G.WithValue(v)), nil
}

// register adds a learnable. Registering the same node twice is a no-op.
func (n *Net) register(w *G.Node) {
	if _, ok := n.registered[w]; ok {
		return
	}
	n.registered[w] = struct{}{}
	n.learnables = append(n.learnables, w)
}

// Model returns the learnables of the network, in registration order.
func (n *Net) Model() G.Nodes {
	retVal := make(G.Nodes, len(n.learnables))
	copy(retVal, n.learnables)
	return retVal
}

// States returns the hop states u[0..Hops].
func (n *Net) States() G.Nodes { return n.hops.states }

// Attention returns the attention node of each hop.
func (n *Net) Attention() G.Nodes { return n.hops.attention }

// Logits returns the output node.
func (n *Net) Logits() *G.Node { return n.logits }

// Graph returns the expression graph of the network.
func (n *Net) Graph() *G.ExprGraph { return n.g }

// SetTesting turns dropout off without rebuilding the graph.
func (n *Net) SetTesting() error {
	if n.keep == nil {
		return nil
	}
	return errors.WithStack(G.Let(n.keep, f32(1)))
}

// SetTraining turns dropout back on.
func (n *Net) SetTraining() error {
	if n.keep == nil {
		return nil
	}
	return errors.WithStack(G.Let(n.keep, f32(float32(n.keepProb()))))
}

// Clone creates a new *Net with the same configuration, collaborators and learnt values.
func (n *Net) Clone() (*Net, error) {
	n2 := New(n.Config, n.opts...)
	if err := n2.Init(); err != nil {
		return nil, err
	}
	if err := copyModel(n2.Model(), n.Model()); err != nil {
		return nil, err
	}
	return n2, nil
}

// Net implements Netter
func (n *Net) Net() *Net { return n }

func (n *Net) reset() {
	n.g = nil
	n.learnables = nil
	n.registered = make(map[*G.Node]struct{})
	n.A, n.B, n.C = nil, nil, nil
	n.H = nil
	n.final = nil
	n.keep = nil

	n.query = nil
	n.memory = nil
	n.target = nil
	n.hops = nil
	n.logits = nil
}

func (n *Net) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, w := range n.Model() {
		v := w.Value()
		if err = enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (n *Net) GobDecode(p []byte) error {
	if n.inputFn == nil && n.outputFn == nil {
		*n = *New(n.Config)
	}
	if err := n.Init(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)
	for _, w := range n.Model() {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if err := G.Let(w, v); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func f32(v float32) *G.F32 {
	retVal := G.F32(v)
	return &retVal
}

func readAll(nodes G.Nodes) []G.Value {
	retVal := make([]G.Value, len(nodes))
	for i, n := range nodes {
		G.Read(n, &retVal[i])
	}
	return retVal
}

// copyModel copies the values of src into dst. Both must come from networks of the same configuration.
func copyModel(dst, src G.Nodes) error {
	if len(dst) != len(src) {
		return errors.Errorf("cannot copy a model of %d learnables into one of %d", len(src), len(dst))
	}
	for i, w := range src {
		if !w.Shape().Eq(dst[i].Shape()) {
			return shapeErr(w.Name(), w.Shape(), dst[i].Shape())
		}
		original := w.Value().Data().([]float32)
		cloned := dst[i].Value().Data().([]float32)
		copy(cloned, original)
	}
	return nil
}
