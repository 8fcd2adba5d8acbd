// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The Allocator itself: construction, heap growth and the public
// Allocate/Free/Reallocate/ZeroAllocate entry points.

package udmalloc

import "math"

const (
	defaultClassCount    = 12
	defaultChunkSize     = 1 << 11 // 2 KiB, mirrors mm.c's CHUNKSIZE
	defaultSplitThresh   = 256
	minClassCount        = 2
)

// Allocator is a single-threaded dynamic memory allocator managing one
// contiguous, monotonically growable HeapMemory. It is not safe for
// concurrent use: callers needing that must serialize their own access,
// the same contract lldb's Allocator places on its callers.
type Allocator struct {
	mem HeapMemory

	classCount  int
	chunkSize   int64
	splitThresh int64

	classArea   int64 // address of class head 0; always mem.Lo()
	prologueAddr int64 // header address of the fixed 8-byte prologue block
}

// Option configures tuning constants at construction time, replacing the
// module-level globals the spec's C ancestor used for CLASS_NUM/CHUNKSIZE
// and the split threshold.
type Option func(*Allocator)

// WithClassCount overrides the number of segregated size classes (K).
// Must be at least 2; the default is 12.
func WithClassCount(k int) Option {
	return func(a *Allocator) { a.classCount = k }
}

// WithChunkSize overrides the minimum number of bytes requested from the
// host HeapMemory on each extension. Must be a positive multiple of 8;
// the default is 2048.
func WithChunkSize(n int64) Option {
	return func(a *Allocator) { a.chunkSize = n }
}

// WithSplitThreshold overrides the allocation size, in bytes, at and
// above which place() puts the free remainder at the low address and the
// allocated block at the high address. The default is 256.
func WithSplitThreshold(n int64) Option {
	return func(a *Allocator) { a.splitThresh = n }
}

// NewAllocator creates an Allocator over mem and performs the one-time
// heap initialization: laying down the class-head array, the prologue and
// epilogue, and requesting the first chunk of usable heap.
func NewAllocator(mem HeapMemory, opts ...Option) (*Allocator, error) {
	a := &Allocator{
		mem:         mem,
		classCount:  defaultClassCount,
		chunkSize:   defaultChunkSize,
		splitThresh: defaultSplitThresh,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.classCount < minClassCount {
		return nil, &InvalidArgumentError{"NewAllocator: classCount too small", a.classCount}
	}
	if a.chunkSize <= 0 || a.chunkSize%dSize != 0 {
		return nil, &InvalidArgumentError{"NewAllocator: chunkSize must be a positive multiple of 8", a.chunkSize}
	}

	if err := a.initialize(); err != nil {
		return nil, err
	}
	return a, nil
}

// initialize lays out the class-head array, a fixed 8-byte prologue block
// and a zero-size epilogue, then requests the first chunk of real heap.
// The padding word keeps the first real block's payload 8-byte aligned
// regardless of classCount's parity, the same trick mm.c plays with
// CLASS_NUM%2.
func (a *Allocator) initialize() error {
	a.classArea = a.mem.Lo()

	pad := int64(0)
	if a.classCount%2 == 0 {
		pad = 1
	}
	headArea := (int64(a.classCount) + pad) * wordSize
	initBytes := headArea + dSize + wordSize // class heads+pad, 8-byte prologue, 4-byte epilogue

	oldBreak, err := a.mem.Extend(initBytes)
	if err != nil {
		return err
	}

	for i := 0; i < a.classCount; i++ {
		if err := a.setClassHead(i, 0); err != nil {
			return err
		}
	}

	a.prologueAddr = oldBreak + headArea
	if err := a.writeHeader(a.prologueAddr, dSize, true, true); err != nil {
		return err
	}
	if err := a.writeWord(a.prologueAddr+wordSize, 0); err != nil {
		return err
	}
	epilogue := a.prologueAddr + dSize
	if err := a.writeHeader(epilogue, 0, true, true); err != nil {
		return err
	}

	_, err = a.extendHeap(a.chunkSize)
	return err
}

// extendHeap grows the heap so that a new free block of exactly n bytes
// appears where the old epilogue used to sit, then relocates the
// epilogue to the new break and coalesces the new block with its
// predecessor if that is also free. It returns the header address of the
// resulting free block. The old epilogue's 4 bytes are reclaimed as the
// start of the new block, and a fresh 4-byte epilogue is appended after
// it, so the host is asked for exactly n new bytes.
func (a *Allocator) extendHeap(n int64) (int64, error) {
	if n < dSize {
		return 0, &InvalidArgumentError{"extendHeap: n too small", n}
	}

	h := a.mem.Hi() + 1 - wordSize
	oldEpilogue, err := a.readWord(h)
	if err != nil {
		return 0, err
	}
	prevAlloc := wordPrevAlloc(oldEpilogue)

	if _, err := a.mem.Extend(n); err != nil {
		return 0, ErrOutOfMemory
	}

	if err := a.writeHeader(h, n, prevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.writeFooter(h, n, prevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.writeHeader(nextBlockAddr(h, n), 0, false, true); err != nil {
		return 0, err
	}

	return a.coalesce(h)
}

// Allocate reserves a block of at least size bytes and returns its
// payload address, or 0 if size is not positive. It returns a non-nil
// error only when the host HeapMemory refuses to grow.
func (a *Allocator) Allocate(size int64) (int64, error) {
	if size <= 0 {
		return 0, nil
	}

	asize := blockSizeFor(size)

	h, err := a.findFit(asize)
	if err != nil {
		return 0, err
	}
	if h == 0 {
		grow := a.chunkSize
		if asize > grow {
			grow = asize
		}
		h, err = a.extendHeap(grow)
		if err != nil {
			return 0, err
		}
	}

	h, err = a.place(h, asize)
	if err != nil {
		return 0, err
	}
	return h + wordSize, nil
}

// Free releases the block at ptr, a payload address previously returned
// by Allocate/Reallocate/ZeroAllocate. Freeing 0 is a no-op.
func (a *Allocator) Free(ptr int64) error {
	if ptr == 0 {
		return nil
	}
	h := ptr - wordSize

	size, err := a.blockSize(h)
	if err != nil {
		return err
	}
	prevAlloc, err := a.blockPrevAlloc(h)
	if err != nil {
		return err
	}

	if err := a.writeHeader(h, size, prevAlloc, false); err != nil {
		return err
	}
	if err := a.writeFooter(h, size, prevAlloc, false); err != nil {
		return err
	}
	if err := a.setPrevAlloc(nextBlockAddr(h, size), false); err != nil {
		return err
	}

	_, err = a.coalesce(h)
	return err
}

// Reallocate resizes the block at ptr to size bytes, preserving the
// lesser of the old and new sizes worth of content. ptr of 0 behaves as
// Allocate; size of 0 behaves as Free and returns 0. On failure to grow,
// the original block is left untouched and a non-nil error is returned.
func (a *Allocator) Reallocate(ptr, size int64) (int64, error) {
	if size <= 0 {
		return 0, a.Free(ptr)
	}
	if ptr == 0 {
		return a.Allocate(size)
	}

	asize := blockSizeFor(size)
	h := ptr - wordSize

	oldSize, err := a.blockSize(h)
	if err != nil {
		return 0, err
	}
	prevAlloc, err := a.blockPrevAlloc(h)
	if err != nil {
		return 0, err
	}

	nextH := nextBlockAddr(h, oldSize)
	nextWord, err := a.readWord(nextH)
	if err != nil {
		return 0, err
	}
	nextAlloc := wordAlloc(nextWord)
	nextSize := wordSizeOf(nextWord)
	nextIsEpilogue := nextAlloc && nextSize == 0

	freeCapacity := oldSize
	if !nextAlloc {
		freeCapacity += nextSize
	}
	if freeCapacity >= asize {
		if !nextAlloc {
			if err := a.remove(nextH, nextSize); err != nil {
				return 0, err
			}
		}
		total := freeCapacity
		if total-asize >= minBlock {
			if err := a.writeHeader(h, asize, prevAlloc, true); err != nil {
				return 0, err
			}
			tailH := nextBlockAddr(h, asize)
			tailSize := total - asize
			if err := a.writeHeader(tailH, tailSize, true, false); err != nil {
				return 0, err
			}
			if err := a.writeFooter(tailH, tailSize, true, false); err != nil {
				return 0, err
			}
			if err := a.insert(tailH, tailSize); err != nil {
				return 0, err
			}
			if err := a.setPrevAlloc(nextBlockAddr(tailH, tailSize), false); err != nil {
				return 0, err
			}
		} else {
			if err := a.writeHeader(h, total, prevAlloc, true); err != nil {
				return 0, err
			}
			if err := a.setPrevAlloc(nextBlockAddr(h, total), true); err != nil {
				return 0, err
			}
		}
		return ptr, nil
	}

	if nextIsEpilogue {
		growBy := asize - oldSize
		if _, err := a.mem.Extend(growBy); err == nil {
			if err := a.writeHeader(h, asize, prevAlloc, true); err != nil {
				return 0, err
			}
			if err := a.writeHeader(nextBlockAddr(h, asize), 0, true, true); err != nil {
				return 0, err
			}
			return ptr, nil
		}
	}

	newPtr, err := a.Allocate(size)
	if err != nil || newPtr == 0 {
		return 0, err
	}

	oldPayload := oldSize - wordSize
	n := size
	if oldPayload < n {
		n = oldPayload
	}
	if n > 0 {
		buf := make([]byte, n)
		if _, err := a.mem.ReadAt(buf, ptr); err != nil {
			return 0, err
		}
		if _, err := a.mem.WriteAt(buf, newPtr); err != nil {
			return 0, err
		}
	}

	if err := a.Free(ptr); err != nil {
		return 0, err
	}
	return newPtr, nil
}

// ZeroAllocate allocates room for count elements of elemSize bytes each,
// zero-filled, mirroring calloc. It returns an InvalidArgumentError
// instead of silently wrapping when count*elemSize overflows, unlike the
// C calloc this package's ancestor left unchecked.
func (a *Allocator) ZeroAllocate(count, elemSize int64) (int64, error) {
	if count == 0 || elemSize == 0 {
		return 0, nil
	}
	if count < 0 || elemSize < 0 {
		return 0, &InvalidArgumentError{"ZeroAllocate: negative count or elemSize", [2]int64{count, elemSize}}
	}
	if count > math.MaxInt64/elemSize {
		return 0, &InvalidArgumentError{"ZeroAllocate: count*elemSize overflows", [2]int64{count, elemSize}}
	}

	total := count * elemSize
	ptr, err := a.Allocate(total)
	if err != nil || ptr == 0 {
		return ptr, err
	}

	zeros := make([]byte, total)
	if _, err := a.mem.WriteAt(zeros, ptr); err != nil {
		return 0, err
	}
	return ptr, nil
}
