// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The segregated free-list index: one size class per bucket, each list kept
// in ascending size order. Grounded on the canned FLT tables and slot
// lookup in lldb/flt.go, generalized from a fixed table to a computed
// class_of(size).

package udmalloc

// classOf returns the index, in [0,k), of the size class that holds blocks
// of the given size. Class i covers (2^(i+4), 2^(i+5)], the last class is
// unbounded.
func classOf(size int64, k int) int {
	for i := 0; i < k-1; i++ {
		if size <= int64(1)<<uint(i+5) {
			return i
		}
	}
	return k - 1
}

// classHeadAddr returns the address of class i's head slot, one word below
// class i+1's slot, with class 0 anchored at the class area's base address.
func (a *Allocator) classHeadAddr(i int) int64 {
	return a.classArea + int64(i)*wordSize
}

func (a *Allocator) classHead(i int) (int64, error) {
	return a.readLink(a.classHeadAddr(i))
}

func (a *Allocator) setClassHead(i int, h int64) error {
	return a.writeLink(a.classHeadAddr(i), h)
}

// insert splices the free block at h, of the given size, into its size
// class's list, keeping the list sorted ascending by size so that
// find_fit's first match within a class is also the best fit in that
// class.
func (a *Allocator) insert(h, size int64) error {
	i := classOf(size, a.classCount)
	head, err := a.classHead(i)
	if err != nil {
		return err
	}

	if head == 0 {
		if err := a.writeLink(predAddr(h), 0); err != nil {
			return err
		}
		if err := a.writeLink(succAddr(h), 0); err != nil {
			return err
		}
		return a.setClassHead(i, h)
	}

	headSize, err := a.blockSize(head)
	if err != nil {
		return err
	}
	if headSize >= size {
		if err := a.writeLink(predAddr(h), 0); err != nil {
			return err
		}
		if err := a.writeLink(succAddr(h), head); err != nil {
			return err
		}
		if err := a.writeLink(predAddr(head), h); err != nil {
			return err
		}
		return a.setClassHead(i, h)
	}

	cur := head
	for {
		succ, err := a.readLink(succAddr(cur))
		if err != nil {
			return err
		}
		if succ == 0 {
			if err := a.writeLink(succAddr(cur), h); err != nil {
				return err
			}
			if err := a.writeLink(predAddr(h), cur); err != nil {
				return err
			}
			return a.writeLink(succAddr(h), 0)
		}

		succSize, err := a.blockSize(succ)
		if err != nil {
			return err
		}
		if succSize >= size {
			if err := a.writeLink(succAddr(cur), h); err != nil {
				return err
			}
			if err := a.writeLink(predAddr(h), cur); err != nil {
				return err
			}
			if err := a.writeLink(succAddr(h), succ); err != nil {
				return err
			}
			return a.writeLink(predAddr(succ), h)
		}
		cur = succ
	}
}

// remove splices the free block at h, of the given size, out of its size
// class's list. When h is the list's only node, the class head resets to
// the null sentinel (offset 0) rather than being left dangling.
func (a *Allocator) remove(h, size int64) error {
	i := classOf(size, a.classCount)

	pred, err := a.readLink(predAddr(h))
	if err != nil {
		return err
	}
	succ, err := a.readLink(succAddr(h))
	if err != nil {
		return err
	}

	switch {
	case pred == 0 && succ == 0:
		return a.setClassHead(i, 0)
	case pred == 0:
		if err := a.writeLink(predAddr(succ), 0); err != nil {
			return err
		}
		return a.setClassHead(i, succ)
	case succ == 0:
		return a.writeLink(succAddr(pred), 0)
	default:
		if err := a.writeLink(succAddr(pred), succ); err != nil {
			return err
		}
		return a.writeLink(predAddr(succ), pred)
	}
}
