package memnet

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fixed embeds with a constant matrix.
type fixed struct{ e *WordEmbedding }

func (f fixed) Embed(x *G.Node) (*G.Node, error) { return f.e.Embed(x) }

func fixedEmbedder(w *tensor.Dense) EmbedderFn {
	return func(g *G.ExprGraph, name string, conf Config) (Embedder, error) {
		c := G.NewConstant(w.Clone().(*tensor.Dense), G.WithName(name+"_fixed"))
		return fixed{&WordEmbedding{W: c}}, nil
	}
}

// Two memories, e1 and e2, a query of e1 and two hops of unscaled attention.
func TestPinnedForward(t *testing.T) {
	conf := Config{
		Hops:       2,
		Dim:        4,
		MemorySize: 2,
		VocabSize:  3,
		Tying:      RNNLike,
		BatchSize:  2,
		FwdOnly:    true,
	}
	embedding := tensor.New(tensor.WithShape(3, 4), tensor.WithBacking([]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0, 0,
	}))
	projection := tensor.New(tensor.WithShape(4, 3), tensor.WithBacking([]float32{
		1, 0, 2,
		0, 1, -1,
		0, 0, 0,
		0, 0, 0,
	}))
	n := mustInit(t, conf,
		WithInputEmbedder(fixedEmbedder(embedding)),
		WithOutputEmbedder(fixedEmbedder(embedding)),
		WithProjection(projection),
	)
	assert.Len(t, n.Model(), 1, "only the final matrix is learnable")

	out := mustInfer(t, n, Input{
		Query:  []float32{1, 0, 0, 0, 1, 0, 0, 0},
		Memory: []int{0, 1, 0, 1},
	})

	twice := func(a []float32) []float32 { return append(append([]float32(nil), a...), a...) }
	expected := &Output{
		Logits: twice([]float32{2.5429148535, 0.4570851465, 4.6287445605}),
		States: [][]float32{
			twice([]float32{1, 0, 0, 0}),
			twice([]float32{1.7310585786, 0.2689414214, 0, 0}),
			twice([]float32{2.5429148535, 0.4570851465, 0, 0}),
		},
		PreActivations: [][]float32{
			twice([]float32{1.7310585786, 0.2689414214, 0, 0}),
			twice([]float32{2.5429148535, 0.4570851465, 0, 0}),
		},
		Attention: [][]float32{
			twice([]float32{0.7310585786, 0.2689414214}),
			twice([]float32{0.8118562749, 0.1881437251}),
		},
		Masks: [][]float32{},
		vocab: 3,
	}
	if !cmp.Equal(expected, out, approx, cmp.AllowUnexported(Output{})) {
		t.Errorf("unexpected output: %v", cmp.Diff(expected, out, approx, cmp.AllowUnexported(Output{})))
	}
	assert.Equal(t, []int{2, 2}, out.Answers())

	// projecting with a mismatched final matrix fails at construction
	bad := New(conf, WithProjection(tensor.New(tensor.WithShape(3, 3), tensor.Of(Float))))
	var se *ShapeError
	assert.True(t, errors.As(bad.Init(), &se))
}

func TestPartialRectify(t *testing.T) {
	for _, reludim := range []int{0, 1, 3, 5, 6} {
		conf := smallConf()
		conf.Hops = 3
		conf.ReluDim = reludim
		n := mustInit(t, conf)
		out := mustInfer(t, n, randomInput(conf, rand.New(rand.NewSource(int64(20+reludim)))))

		for k, pre := range out.PreActivations {
			state := out.States[k+1]
			for i, v := range pre {
				if i%conf.Dim < conf.Dim-reludim {
					if state[i] != v {
						t.Errorf("reludim %d hop %d: element %d should be untouched. Got %v, want %v", reludim, k+1, i, state[i], v)
					}
					continue
				}
				want := v
				if want < 0 {
					want = 0
				}
				if state[i] != want {
					t.Errorf("reludim %d hop %d: element %d should be rectified. Got %v, want %v", reludim, k+1, i, state[i], want)
				}
			}
		}
	}
}

func TestHopControllerRejectsReluDim(t *testing.T) {
	g := G.NewGraph()
	u := G.NewMatrix(g, Float, G.WithShape(2, 4), G.WithName("u"))
	m := G.NewTensor(g, Float, 3, G.WithShape(2, 3, 4), G.WithName("m"))
	for _, reludim := range []int{-1, 5} {
		hc := &hopController{layer: NewACLayer(nil, nil), hops: 2, dim: 4, reludim: reludim}
		before := len(g.AllNodes())
		err := hc.run(u, m, m)
		var ce *ConfigError
		assert.True(t, errors.As(err, &ce), "reludim %d: %v", reludim, err)
		assert.Equal(t, before, len(g.AllNodes()), "nothing is built for an illegal reludim")
	}
}

func dropoutNet(t *testing.T, variational bool) *Net {
	conf := smallConf()
	conf.Hops = 3
	conf.Dim = 40
	conf.ReluDim = 0
	conf.DropoutRate = 0.5
	conf.Variational = variational
	conf.FwdOnly = true
	return mustInit(t, conf)
}

func dropoutOutput(t *testing.T, variational bool) (*Net, *Output) {
	n := dropoutNet(t, variational)
	return n, mustInfer(t, n, randomInput(n.Config, rand.New(rand.NewSource(30))))
}

// distinct counts the distinct nodes.
func distinct(nodes G.Nodes) int {
	set := make(map[*G.Node]struct{})
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return len(set)
}

func checkDropout(t *testing.T, conf Config, out *Output) {
	keep := float32(1 - conf.DropoutRate)
	for k, mask := range out.Masks {
		pre := out.PreActivations[k]
		state := out.States[k+1]
		var kept int
		for i, v := range mask {
			switch v {
			case 0:
				assert.Equal(t, float32(0), state[i], "hop %d: element %d is dropped", k+1, i)
			case 1:
				kept++
				assert.InDelta(t, pre[i]/keep, state[i], 1e-4, "hop %d: element %d is scaled", k+1, i)
			default:
				t.Fatalf("hop %d: mask holds %v", k+1, v)
			}
		}
		assert.True(t, kept > 0 && kept < len(mask), "hop %d: %d of %d kept", k+1, kept, len(mask))
	}
}

func TestVariationalDropout(t *testing.T) {
	n, out := dropoutOutput(t, true)
	require.Len(t, n.hops.masks, n.Hops)
	assert.Equal(t, 1, distinct(n.hops.masks), "one mask node is shared by every hop")

	require.Len(t, out.Masks, n.Hops)
	for k := 1; k < len(out.Masks); k++ {
		assert.Equal(t, out.Masks[0], out.Masks[k], "hop %d uses another mask", k+1)
	}
	checkDropout(t, n.Config, out)

	// the shared mask is drawn again on every pass
	inf, err := NewInferencer(n, false)
	require.NoError(t, err)
	defer inf.Close()
	in := randomInput(n.Config, rand.New(rand.NewSource(31)))
	first, err := inf.Infer(in)
	require.NoError(t, err)
	second, err := inf.Infer(in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Masks[0], second.Masks[0], "a new pass should draw a new mask")
	for k := 1; k < len(second.Masks); k++ {
		assert.Equal(t, second.Masks[0], second.Masks[k])
	}
}

func TestStandardDropout(t *testing.T) {
	n, out := dropoutOutput(t, false)
	require.Len(t, n.hops.masks, n.Hops)
	assert.Equal(t, n.Hops, distinct(n.hops.masks), "every hop has its own mask node")

	require.Len(t, out.Masks, n.Hops)
	for j := 0; j < len(out.Masks); j++ {
		for k := j + 1; k < len(out.Masks); k++ {
			assert.False(t, cmp.Equal(out.Masks[j], out.Masks[k]), "hops %d and %d draw the same mask", j+1, k+1)
		}
	}
	checkDropout(t, n.Config, out)
}

func TestDropoutSwitch(t *testing.T) {
	conf := smallConf()
	conf.DropoutRate = 0.3
	conf.FwdOnly = true
	n := mustInit(t, conf)

	plain := conf
	plain.DropoutRate = 0
	n0 := mustInit(t, plain)
	require.NoError(t, copyModel(n0.Model(), n.Model()))

	in := randomInput(conf, rand.New(rand.NewSource(40)))
	require.NoError(t, n.SetTesting())
	a := mustInfer(t, n, in)
	b := mustInfer(t, n0, in)
	assert.Empty(t, b.Masks)
	if !cmp.Equal(a.Logits, b.Logits, approx) {
		t.Errorf("dropout in testing mode changes the output: %v", cmp.Diff(a.Logits, b.Logits, approx))
	}

	require.NoError(t, n.SetTraining())
	c := mustInfer(t, n, in)
	assert.False(t, cmp.Equal(a.Logits, c.Logits), "dropout should be back on")

	// switching is a no-op without dropout
	assert.NoError(t, n0.SetTesting())
	assert.NoError(t, n0.SetTraining())
}
