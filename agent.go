package memn2n

import (
	"log"
	"runtime"
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/gorgonia/memn2n/memnet"
	"github.com/gorgonia/memn2n/task"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

var numCPU = runtime.NumCPU()

// Answer is the answer of an agent to a question.
type Answer struct {
	Word      string
	Logits    []float32
	Attention [][]float32 // attention over the memory slots at each hop
}

// An Agent answers questions with a memory network.
type Agent struct {
	NN    *memnet.Net
	Enc   StoryEncoder
	Vocab *task.Vocab

	// Statistics
	Correct float32
	Wrong   float32
	sync.Mutex

	name     string
	pool     sync.RWMutex // read locked while answering, write locked while inferers are replaced
	inferer  chan Inferer
	inferers []Inferer
	cache    *ristretto.Cache
}

func newAgent(a Netter, enc StoryEncoder, vocab *task.Vocab, cacheSize int64) (*Agent, error) {
	retVal := &Agent{
		NN:       a.Net(),
		Enc:      enc,
		Vocab:    vocab,
		inferers: make([]Inferer, 0),
	}
	if cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10 * cacheSize,
			MaxCost:     cacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, errors.Wrap(err, "unable to create the answer cache")
		}
		retVal.cache = cache
	}
	return retVal, nil
}

// SwitchToInference uses the inference mode neural network. Previously memoized answers are forgotten.
func (a *Agent) SwitchToInference() (err error) {
	a.Lock()
	defer a.Unlock()
	a.pool.Lock()
	defer a.pool.Unlock()
	if err = a.closeInferers(); err != nil {
		return err
	}
	a.inferer = make(chan Inferer, numCPU)

	for i := 0; i < numCPU; i++ {
		var inf Inferer
		if inf, err = memnet.Infer(a.NN, false); err != nil {
			return err
		}
		a.inferers = append(a.inferers, inf)
		a.inferer <- inf
	}
	if a.cache != nil {
		a.cache.Clear()
	}
	return nil
}

// Answer answers a bunch of questions, a batch at a time.
func (a *Agent) Answer(exs []task.Example) ([]Answer, error) {
	conf := a.NN.Config
	retVal := make([]Answer, len(exs))
	var todo []int
	for i, ex := range exs {
		if a.cache != nil {
			if v, ok := a.cache.Get(ex.Key()); ok {
				retVal[i] = v.(Answer)
				continue
			}
		}
		todo = append(todo, i)
	}

	for start := 0; start < len(todo); start += conf.BatchSize {
		end := start + conf.BatchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]
		in, err := a.encode(exs, batch)
		if err != nil {
			return nil, err
		}
		out, err := a.infer(in)
		if err != nil {
			return nil, err
		}

		rows := MakeRows(out.Logits, conf.BatchSize, conf.VocabSize)
		for b, i := range batch {
			ans := Answer{
				Word:      a.Vocab.Word(vecf32.Argmax(rows[b])),
				Logits:    append([]float32(nil), rows[b]...),
				Attention: make([][]float32, len(out.Attention)),
			}
			for k, p := range out.Attention {
				ans.Attention[k] = p[b*conf.MemorySize : (b+1)*conf.MemorySize]
			}
			retVal[i] = ans
			if a.cache != nil {
				a.cache.Set(exs[i].Key(), ans, 1)
			}
		}
		ReturnRows(rows)
	}
	return retVal, nil
}

// encode encodes the given examples into one batch. Rows past the examples are left empty.
func (a *Agent) encode(exs []task.Example, which []int) (memnet.Input, error) {
	conf := a.NN.Config
	width := conf.MemorySize * conf.VocabSize
	in := memnet.Input{
		Query: make([]float32, conf.BatchSize*conf.VocabSize),
		Soft:  make([]float32, conf.BatchSize*width),
	}
	for b, i := range which {
		q, mem, err := a.Enc(exs[i], a.Vocab, conf)
		if err != nil {
			return in, errors.WithMessagef(err, "unable to encode example %d", i)
		}
		copy(in.Query[b*conf.VocabSize:], q)
		copy(in.Soft[b*width:], mem)
	}
	return in, nil
}

func (a *Agent) infer(in memnet.Input) (*memnet.Output, error) {
	a.pool.RLock()
	defer a.pool.RUnlock()
	ch := a.inferer
	if ch == nil {
		return nil, errors.New("agent is not in inference mode. Call SwitchToInference first")
	}
	inf := <-ch
	defer func() { ch <- inf }()

	out, err := inf.Infer(in)
	if err != nil {
		if el, ok := inf.(ExecLogger); ok {
			log.Println(el.ExecLog())
		}
		return nil, err
	}
	return out, nil
}

func (a *Agent) Close() error {
	a.Lock()
	defer a.Unlock()
	a.pool.Lock()
	defer a.pool.Unlock()
	err := a.closeInferers()
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
	return err
}

// closeInferers must be called with the pool write locked.
func (a *Agent) closeInferers() error {
	if a.inferer != nil {
		close(a.inferer)
		a.inferer = nil
	}
	var allErrs manyErr
	for _, inferer := range a.inferers {
		if err := inferer.Close(); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	a.inferers = a.inferers[:0]
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

func (a *Agent) useDummy() {
	a.Lock()
	defer a.Unlock()
	a.pool.Lock()
	defer a.pool.Unlock()
	a.closeInferers()
	conf := a.NN.Config
	a.inferer = make(chan Inferer, numCPU)
	for i := 0; i < numCPU; i++ {
		a.inferer <- dummyInferer{
			batchSize:  conf.BatchSize,
			vocabSize:  conf.VocabSize,
			memorySize: conf.MemorySize,
			hops:       conf.Hops,
		}
	}
	if a.cache != nil {
		a.cache.Clear()
	}
}

func (a *Agent) resetStats() {
	a.Lock()
	a.Correct = 0
	a.Wrong = 0
	a.Unlock()
}
