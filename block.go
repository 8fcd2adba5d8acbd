// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Block header/footer encoding and the address arithmetic derived from it.

package udmalloc

const (
	wordSize = 4 // header/footer/link field width, in bytes
	dSize    = 8 // alignment granularity

	flagAlloc     = uint32(1)
	flagPrevAlloc = uint32(2)
	sizeMask      = ^uint32(7)

	// minBlock is the smallest legal block: a header, pred+succ link
	// fields and a footer, or a header plus 12 payload bytes.
	minBlock = 16
)

// packWord builds a header/footer word from a size and the two flag bits.
func packWord(size int64, prevAlloc, alloc bool) uint32 {
	w := uint32(size) & sizeMask
	if prevAlloc {
		w |= flagPrevAlloc
	}
	if alloc {
		w |= flagAlloc
	}
	return w
}

func wordSizeOf(w uint32) int64    { return int64(w & sizeMask) }
func wordAlloc(w uint32) bool      { return w&flagAlloc != 0 }
func wordPrevAlloc(w uint32) bool  { return w&flagPrevAlloc != 0 }

func roundUp8(n int64) int64 { return (n + 7) &^ 7 }

// blockSizeFor computes the requested block size for a size byte request:
// max(MIN_BLOCK, round_up(size+wordSize, dSize)).
func blockSizeFor(size int64) int64 {
	asize := roundUp8(size + wordSize)
	if asize < minBlock {
		asize = minBlock
	}
	return asize
}

func (a *Allocator) readWord(addr int64) (uint32, error) {
	var b [wordSize]byte
	if _, err := a.mem.ReadAt(b[:], addr); err != nil {
		return 0, &InvalidArgumentError{"udmalloc: readWord out of bounds", addr}
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (a *Allocator) writeWord(addr int64, w uint32) error {
	b := [wordSize]byte{byte(w >> 24), byte(w >> 16), byte(w >> 8), byte(w)}
	if _, err := a.mem.WriteAt(b[:], addr); err != nil {
		return &InvalidArgumentError{"udmalloc: writeWord out of bounds", addr}
	}
	return nil
}

// blockSize returns the size, in bytes, of the block whose header is at h.
func (a *Allocator) blockSize(h int64) (int64, error) {
	w, err := a.readWord(h)
	if err != nil {
		return 0, err
	}
	return wordSizeOf(w), nil
}

// blockPrevAlloc returns the prevAlloc bit of the block whose header is at h.
func (a *Allocator) blockPrevAlloc(h int64) (bool, error) {
	w, err := a.readWord(h)
	if err != nil {
		return false, err
	}
	return wordPrevAlloc(w), nil
}

// blockAlloc returns the alloc bit of the block whose header is at h.
func (a *Allocator) blockAlloc(h int64) (bool, error) {
	w, err := a.readWord(h)
	if err != nil {
		return false, err
	}
	return wordAlloc(w), nil
}

func footerAddr(h, size int64) int64 { return h + size - wordSize }
func nextBlockAddr(h, size int64) int64 { return h + size }
func predAddr(h int64) int64 { return h + wordSize }
func succAddr(h int64) int64 { return h + 2*wordSize }

// writeHeader writes only the block's header word.
func (a *Allocator) writeHeader(h, size int64, prevAlloc, alloc bool) error {
	return a.writeWord(h, packWord(size, prevAlloc, alloc))
}

// writeFooter writes only the block's footer word (free blocks only).
func (a *Allocator) writeFooter(h, size int64, prevAlloc, alloc bool) error {
	return a.writeWord(footerAddr(h, size), packWord(size, prevAlloc, alloc))
}

// writeFreeBlock writes header, footer and both link fields of a free block.
func (a *Allocator) writeFreeBlock(h, size int64, prevAlloc bool, pred, succ int64) error {
	if err := a.writeHeader(h, size, prevAlloc, false); err != nil {
		return err
	}
	if err := a.writeFooter(h, size, prevAlloc, false); err != nil {
		return err
	}
	if err := a.writeLink(predAddr(h), pred); err != nil {
		return err
	}
	return a.writeLink(succAddr(h), succ)
}

// setPrevAlloc flips just the prevAlloc bit of the block header at h,
// leaving size and the block's own alloc bit untouched.
func (a *Allocator) setPrevAlloc(h int64, prevAlloc bool) error {
	w, err := a.readWord(h)
	if err != nil {
		return err
	}
	size := wordSizeOf(w)
	alloc := wordAlloc(w)
	return a.writeHeader(h, size, prevAlloc, alloc)
}

// prevBlockAddr returns the header address of h's left neighbour. It is
// only meaningful when h's own prevAlloc bit is false, in which case the
// left neighbour is free and therefore carries a footer this function
// reads to learn its size - the footer-elision asymmetry from spec
// section 9.
func (a *Allocator) prevBlockAddr(h int64) (int64, error) {
	w, err := a.readWord(h - wordSize)
	if err != nil {
		return 0, err
	}
	return h - wordSizeOf(w), nil
}

func (a *Allocator) readLink(addr int64) (int64, error) {
	w, err := a.readWord(addr)
	if err != nil {
		return 0, err
	}
	return int64(w), nil
}

func (a *Allocator) writeLink(addr, target int64) error {
	return a.writeWord(addr, uint32(target))
}
