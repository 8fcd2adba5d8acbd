// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// find_fit and place: locating a free block that fits a request and
// deciding how to split it.

package udmalloc

// findFit scans size classes from class_of(asize) upward and returns the
// header address of the first block in the first non-empty class that is
// large enough, or 0 if none exists. Because each class list is kept
// sorted ascending, the first match within a class is also the smallest
// usable block in that class.
func (a *Allocator) findFit(asize int64) (int64, error) {
	for i := classOf(asize, a.classCount); i < a.classCount; i++ {
		cur, err := a.classHead(i)
		if err != nil {
			return 0, err
		}
		for cur != 0 {
			size, err := a.blockSize(cur)
			if err != nil {
				return 0, err
			}
			if size >= asize {
				return cur, nil
			}
			cur, err = a.readLink(succAddr(cur))
			if err != nil {
				return 0, err
			}
		}
	}
	return 0, nil
}

// place marks the free block at h allocated, splitting off a free
// remainder when the leftover is large enough to stand on its own. Below
// the split threshold the allocated half is placed at the low address and
// the free remainder at the high address, keeping small allocations
// packed together; at or above the threshold the roles invert, keeping
// large allocations from fragmenting the low addresses a future small
// request would want. It returns the header address of the allocated
// block.
func (a *Allocator) place(h, asize int64) (int64, error) {
	size, err := a.blockSize(h)
	if err != nil {
		return 0, err
	}
	if err := a.remove(h, size); err != nil {
		return 0, err
	}
	prevAlloc, err := a.blockPrevAlloc(h)
	if err != nil {
		return 0, err
	}

	rest := size - asize
	if rest < minBlock {
		if err := a.writeHeader(h, size, prevAlloc, true); err != nil {
			return 0, err
		}
		if err := a.setPrevAlloc(nextBlockAddr(h, size), true); err != nil {
			return 0, err
		}
		return h, nil
	}

	if asize < a.splitThresh {
		if err := a.writeHeader(h, asize, prevAlloc, true); err != nil {
			return 0, err
		}
		freeH := nextBlockAddr(h, asize)
		if err := a.writeHeader(freeH, rest, true, false); err != nil {
			return 0, err
		}
		if err := a.writeFooter(freeH, rest, true, false); err != nil {
			return 0, err
		}
		if err := a.insert(freeH, rest); err != nil {
			return 0, err
		}
		if err := a.setPrevAlloc(nextBlockAddr(freeH, rest), false); err != nil {
			return 0, err
		}
		return h, nil
	}

	if err := a.writeHeader(h, rest, prevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.writeFooter(h, rest, prevAlloc, false); err != nil {
		return 0, err
	}
	if err := a.insert(h, rest); err != nil {
		return 0, err
	}
	allocH := nextBlockAddr(h, rest)
	if err := a.writeHeader(allocH, asize, false, true); err != nil {
		return 0, err
	}
	if err := a.setPrevAlloc(nextBlockAddr(allocH, asize), true); err != nil {
		return 0, err
	}
	return allocH, nil
}
