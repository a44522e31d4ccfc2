package memn2n

import (
	"reflect"
	"unsafe"
)

// MakeRows views a flat, row major buffer as m rows of n. The rows share the buffer.
//
// Return the rows with ReturnRows once done.
func MakeRows(flat []float32, m, n int) (retVal [][]float32) {
	if len(flat) < m*n {
		panic("buffer too small for the requested rows")
	}
	retVal = borrowRows(m)
	for i := range retVal {
		start := i * n
		hdr := (*reflect.SliceHeader)(unsafe.Pointer(&retVal[i]))
		hdr.Data = uintptr(unsafe.Pointer(&flat[start]))
		hdr.Len = n
		hdr.Cap = n
	}
	return
}
