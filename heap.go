// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The sbrk-like heap primitive: extend-only growth plus lo/hi queries.

package udmalloc

import (
	"io"

	"github.com/cznic/mathutil"
)

// HeapMemory is the Go expression of the host "sbrk" primitive from spec
// section 6: extend the heap by n bytes and report its bounds. Because Go
// has no notion of dereferencing an arbitrary int64 as a pointer the way C
// does with mem_heap_lo()/mem_heap_hi(), HeapMemory additionally exposes
// ReadAt/WriteAt - the minimal byte-level access the allocator needs to
// manipulate header words and link fields at addresses it computes itself.
// This is the same shape as the teacher's Filer.ReadAt/WriteAt.
type HeapMemory interface {
	// Extend grows the heap by exactly n bytes (n must be positive) and
	// returns the address of the old break - the first byte of the
	// newly available region. It fails with ErrOutOfMemory if the host
	// refuses to grow further. Callers needing 8-byte-aligned blocks
	// are responsible for requesting aligned amounts themselves; the
	// primitive itself is agnostic to alignment.
	Extend(n int64) (oldBreak int64, err error)

	// Lo returns the lowest valid heap address.
	Lo() int64

	// Hi returns the highest valid heap address (inclusive). Hi() < Lo()
	// when the heap is empty.
	Hi() int64

	// ReadAt and WriteAt address an absolute heap byte offset, as
	// os.File.ReadAt/WriteAt do for a file offset.
	ReadAt(b []byte, off int64) (n int, err error)
	WriteAt(b []byte, off int64) (n int, err error)
}

const (
	pgBits = 12
	pgSize = 1 << pgBits
	pgMask = pgSize - 1
)

var zeroPage [pgSize]byte

var _ HeapMemory = (*MemHeap)(nil)

// MemHeap is an in-process HeapMemory backed by a sparse page map, grounded
// on the teacher's MemFiler (lldb/memfiler.go): unwritten pages read back as
// zero without ever being materialized, which is exactly what a freshly
// sbrk'd region looks like.
type MemHeap struct {
	m    map[int64]*[pgSize]byte
	size int64
}

// NewMemHeap returns an empty MemHeap. Its first Extend call establishes
// Lo() at 0.
func NewMemHeap() *MemHeap {
	return &MemHeap{m: map[int64]*[pgSize]byte{}}
}

// Lo implements HeapMemory.
func (h *MemHeap) Lo() int64 { return 0 }

// Hi implements HeapMemory.
func (h *MemHeap) Hi() int64 { return h.size - 1 }

// Extend implements HeapMemory.
func (h *MemHeap) Extend(n int64) (oldBreak int64, err error) {
	if n <= 0 {
		return 0, &InvalidArgumentError{"MemHeap.Extend: n must be positive", n}
	}

	oldBreak = h.size
	h.size += n
	return oldBreak, nil
}

// ReadAt implements HeapMemory.
func (h *MemHeap) ReadAt(b []byte, off int64) (n int, err error) {
	avail := h.size - off
	pgI := off >> pgBits
	pgO := int(off & pgMask)
	rem := len(b)
	if int64(rem) > avail {
		rem = int(avail)
		err = io.ErrUnexpectedEOF
	}
	for rem != 0 && avail > 0 {
		pg := h.m[pgI]
		if pg == nil {
			pg = &zeroPage
		}
		nc := copy(b[:mathutil.Min(rem, pgSize-pgO)], pg[pgO:])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
		b = b[nc:]
	}
	return
}

// WriteAt implements HeapMemory.
func (h *MemHeap) WriteAt(b []byte, off int64) (n int, err error) {
	if off < 0 || off+int64(len(b)) > h.size {
		return 0, &InvalidArgumentError{"MemHeap.WriteAt: out of bounds", off}
	}

	pgI := off >> pgBits
	pgO := int(off & pgMask)
	n = len(b)
	rem := n
	for rem != 0 {
		pg := h.m[pgI]
		if pg == nil {
			pg = new([pgSize]byte)
			h.m[pgI] = pg
		}
		nc := copy((*pg)[pgO:], b)
		pgI++
		pgO = 0
		rem -= nc
		b = b[nc:]
	}
	return
}

var _ HeapMemory = (*FaultyHeap)(nil)

// FaultyHeap wraps a HeapMemory and can be told to refuse growth past a
// byte ceiling, the OOM-injection fixture needed by spec scenario 6
// ("Configure the host primitive to refuse extensions"). It plays the role
// the teacher's test flags (-lim/-hlim in falloc_test.go) play for
// bounding randomized tests, but as an explicit, composable wrapper rather
// than a global flag.
type FaultyHeap struct {
	HeapMemory
	Ceiling int64 // Extend fails once Hi()+1+n would exceed Ceiling. Zero means no limit.
}

// Extend implements HeapMemory.
func (f *FaultyHeap) Extend(n int64) (int64, error) {
	if f.Ceiling > 0 && f.HeapMemory.Hi()+1+n > f.Ceiling {
		return 0, ErrOutOfMemory
	}

	return f.HeapMemory.Extend(n)
}
