// Package bufpool implements the process-wide buffer pool (spec section
// 3.5 and 4.2): it rents zero-cleared byte buffers and schema-descriptor
// arrays so that steady-state record processing never allocates. The
// rent/return split and the sync.Pool-of-slices approach are grounded on
// ClusterCockpit-cc-backend's internal/memorystore/buffer.go, which pools
// fixed-shape buffer nodes the same way rather than letting a slice grow
// by repeated reallocation.
package bufpool

import (
	"sync"

	"github.com/flowkit/etl/pkg/schema"
)

// Pool rents and returns byte buffers and schema-descriptor arrays. The
// zero value is ready to use. A Pool is safe for concurrent use, per
// spec section 5 ("The Buffer Pool is shared; it MUST be safe for
// concurrent rent/return").
type Pool struct {
	buffers sync.Pool // *[]byte, classed by cap via sizeClass
	fields  sync.Pool // *[]schema.FieldDescriptor
}

// New returns a ready-to-use Pool.
func New() *Pool {
	return &Pool{}
}

// sizeClass rounds a requested size up to the next power of two above a
// 64-byte floor, so a handful of size classes cover the common record
// sizes a pipeline run will see instead of one pool entry per distinct
// schema width.
func sizeClass(n int) int {
	const floor = 64
	if n <= floor {
		return floor
	}
	c := floor
	for c < n {
		c <<= 1
	}
	return c
}

// RentBuffer returns a buffer of length minSize, all bytes zeroed. The
// returned slice's length is exactly minSize; its capacity may be larger.
func (p *Pool) RentBuffer(minSize int) []byte {
	v := p.buffers.Get()
	if v == nil {
		return make([]byte, minSize, sizeClass(minSize))
	}
	buf := v.(*[]byte)
	b := *buf
	if cap(b) < minSize {
		return make([]byte, minSize, sizeClass(minSize))
	}
	b = b[:minSize]
	clear(b)
	return b
}

// ReturnBuffer returns a buffer previously obtained from RentBuffer.
// Using buf after returning it, or returning a buffer not obtained from
// this pool, is a caller bug the pool is not required to detect (spec
// section 4.2).
func (p *Pool) ReturnBuffer(buf []byte) {
	if buf == nil {
		return
	}
	b := buf[:cap(buf)]
	p.buffers.Put(&b)
}

// RentSchemaArray returns a field-descriptor slice of length n, reused
// across rent/return cycles by the orchestrator when building ad hoc
// output schemas (e.g. the rule-based transformer's derived schema).
func (p *Pool) RentSchemaArray(n int) []schema.FieldDescriptor {
	v := p.fields.Get()
	if v == nil {
		return make([]schema.FieldDescriptor, n, nextPow2(n))
	}
	arr := v.(*[]schema.FieldDescriptor)
	a := *arr
	if cap(a) < n {
		return make([]schema.FieldDescriptor, n, nextPow2(n))
	}
	a = a[:n]
	var zero schema.FieldDescriptor
	for i := range a {
		a[i] = zero
	}
	return a
}

// ReturnSchemaArray returns a field-descriptor slice previously obtained
// from RentSchemaArray.
func (p *Pool) ReturnSchemaArray(arr []schema.FieldDescriptor) {
	if arr == nil {
		return
	}
	a := arr[:cap(arr)]
	p.fields.Put(&a)
}

func nextPow2(n int) int {
	if n <= 8 {
		return 8
	}
	c := 8
	for c < n {
		c <<= 1
	}
	return c
}

// BufferSizeFor computes the total number of bytes a record buffer for
// s must hold (spec section 4.2's buffer_size_for).
func BufferSizeFor(s *schema.Schema) int {
	return s.BufferSize()
}
