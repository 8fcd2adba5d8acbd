// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The four-case coalescer, grounded on lldb/falloc.go's free2 and on
// mm.c's coalesce().

package udmalloc

// coalesce merges the free block at h with any free neighbours, inserts
// the merged result into its size class and returns the merged block's
// header address. h must already carry a written header/footer and must
// not yet belong to any free list.
func (a *Allocator) coalesce(h int64) (int64, error) {
	size, err := a.blockSize(h)
	if err != nil {
		return 0, err
	}
	prevAlloc, err := a.blockPrevAlloc(h)
	if err != nil {
		return 0, err
	}

	nextH := nextBlockAddr(h, size)
	nextWord, err := a.readWord(nextH)
	if err != nil {
		return 0, err
	}
	nextAlloc := wordAlloc(nextWord)
	nextSize := wordSizeOf(nextWord)

	var prevH, prevSize int64
	var prevPrevAlloc bool
	if !prevAlloc {
		prevH, err = a.prevBlockAddr(h)
		if err != nil {
			return 0, err
		}
		prevSize, err = a.blockSize(prevH)
		if err != nil {
			return 0, err
		}
		prevPrevAlloc, err = a.blockPrevAlloc(prevH)
		if err != nil {
			return 0, err
		}
	}

	var mergedH, mergedSize int64
	var mergedPrevAlloc bool

	switch {
	case prevAlloc && nextAlloc:
		if err := a.insert(h, size); err != nil {
			return 0, err
		}
		return h, nil

	case prevAlloc && !nextAlloc:
		if err := a.remove(nextH, nextSize); err != nil {
			return 0, err
		}
		mergedH, mergedSize, mergedPrevAlloc = h, size+nextSize, true

	case !prevAlloc && nextAlloc:
		if err := a.remove(prevH, prevSize); err != nil {
			return 0, err
		}
		mergedH, mergedSize, mergedPrevAlloc = prevH, prevSize+size, prevPrevAlloc

	default:
		if err := a.remove(prevH, prevSize); err != nil {
			return 0, err
		}
		if err := a.remove(nextH, nextSize); err != nil {
			return 0, err
		}
		mergedH, mergedSize, mergedPrevAlloc = prevH, prevSize+size+nextSize, prevPrevAlloc
	}

	if err := a.writeHeader(mergedH, mergedSize, mergedPrevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.writeFooter(mergedH, mergedSize, mergedPrevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.insert(mergedH, mergedSize); err != nil {
		return 0, err
	}
	if err := a.setPrevAlloc(nextBlockAddr(mergedH, mergedSize), false); err != nil {
		return 0, err
	}
	return mergedH, nil
}
