package memn2n

import (
	"sync"
)

var (
	rowsMu   sync.Mutex
	rowsPool = make(map[int]*sync.Pool)
)

func borrowRows(m int) [][]float32 {
	rowsMu.Lock()
	p, ok := rowsPool[m]
	rowsMu.Unlock()
	if ok {
		return p.Get().([][]float32)
	}
	return make([][]float32, m)
}

// ReturnRows returns the rows made by MakeRows to the pool.
func ReturnRows(rows [][]float32) {
	m := len(rows)
	for i := range rows {
		rows[i] = nil
	}

	rowsMu.Lock()
	p, ok := rowsPool[m]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return make([][]float32, m) },
		}
		rowsPool[m] = p
	}
	rowsMu.Unlock()
	p.Put(rows)
}
