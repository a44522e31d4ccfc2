package memn2n

import "github.com/gorgonia/memn2n/memnet"

// dummyInferer answers uniformly. It is the baseline an untrained network is measured against.
type dummyInferer struct {
	batchSize, vocabSize, memorySize, hops int
}

func (d dummyInferer) Infer(in memnet.Input) (*memnet.Output, error) {
	out := &memnet.Output{
		Logits:    make([]float32, d.batchSize*d.vocabSize),
		Attention: make([][]float32, d.hops),
	}
	for k := range out.Attention {
		p := make([]float32, d.batchSize*d.memorySize)
		for i := range p {
			p[i] = 1 / float32(d.memorySize)
		}
		out.Attention[k] = p
	}
	return out, nil
}

func (d dummyInferer) Close() error { return nil }
