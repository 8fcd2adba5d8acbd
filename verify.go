// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// CheckHeap walks both the block chain and the free-list index and
// cross-checks them against invariants I1-I9, in the spirit of
// lldb/falloc.go's Verify and mm.c's mm_checkheap.

package udmalloc

import (
	"sort"

	"github.com/cznic/sortutil"
)

// AllocStats summarizes the current heap occupancy.
type AllocStats struct {
	TotalBytes  int64
	AllocBytes  int64
	AllocBlocks int64
	FreeBytes   int64
	FreeBlocks  int64
}

// Stats walks the block chain once and reports occupancy without
// validating any invariant; CheckHeap is the validating counterpart.
func (a *Allocator) Stats() (AllocStats, error) {
	var st AllocStats
	h := a.prologueAddr
	for {
		size, err := a.blockSize(h)
		if err != nil {
			return st, err
		}
		if size == 0 {
			break
		}
		alloc, err := a.blockAlloc(h)
		if err != nil {
			return st, err
		}
		if alloc {
			st.AllocBytes += size
			st.AllocBlocks++
		} else {
			st.FreeBytes += size
			st.FreeBlocks++
		}
		st.TotalBytes += size
		h = nextBlockAddr(h, size)
	}
	return st, nil
}

// CheckHeap walks the block chain and every size class's free list and
// validates invariants I1-I9, returning the first violation found as an
// *InvariantViolationError. origin names the caller for diagnostics, the
// same role the teacher's Verify(origin) parameter plays.
func (a *Allocator) CheckHeap(origin string) error {
	violation := func(tag InvariantTag, addr int64, detail string) error {
		return &InvariantViolationError{Origin: origin, Tag: tag, Addr: addr, Detail: detail}
	}

	// Phase 1: walk the block chain from the prologue to the epilogue.
	heapFreeCount := 0
	prevWasFree := false
	h := a.prologueAddr
	sum := int64(0)
	for {
		size, err := a.blockSize(h)
		if err != nil {
			return err
		}

		if h%dSize != 4 {
			return violation(InvariantAlignment, h, "header address is not congruent to 4 mod 8")
		}
		if h < a.prologueAddr || h > a.mem.Hi() {
			return violation(InvariantAlignment, h, "header address out of heap bounds")
		}

		if size == 0 {
			break // epilogue
		}

		alloc, err := a.blockAlloc(h)
		if err != nil {
			return err
		}
		prevAlloc, err := a.blockPrevAlloc(h)
		if err != nil {
			return err
		}

		if h != a.prologueAddr && prevAlloc == prevWasFree {
			return violation(InvariantPrevAlloc, h, "prev_alloc bit disagrees with predecessor's actual state")
		}

		if !alloc {
			if prevWasFree {
				return violation(InvariantNoAdjacentFree, h, "two adjacent free blocks")
			}
			fw, err := a.readWord(footerAddr(h, size))
			if err != nil {
				return err
			}
			if wordSizeOf(fw) != size || wordAlloc(fw) || wordPrevAlloc(fw) != prevAlloc {
				return violation(InvariantFooterMatch, h, "footer does not match header")
			}
			heapFreeCount++
		}

		sum += size
		prevWasFree = !alloc
		h = nextBlockAddr(h, size)
	}

	wantSum := a.mem.Hi() + 1 - a.prologueAddr - wordSize // exclude the 4-byte epilogue word
	if sum != wantSum {
		return violation(InvariantBlockSum, a.prologueAddr, "sum of block sizes does not span the heap")
	}

	// Phase 2: walk every size class's free list.
	listFreeCount := 0
	seen := map[int64]bool{}
	for i := 0; i < a.classCount; i++ {
		head, err := a.classHead(i)
		if err != nil {
			return err
		}

		prev := int64(0)
		cur := head
		var sizes sortutil.Int64Slice
		for cur != 0 {
			if seen[cur] {
				return violation(InvariantSingleOwner, cur, "free block linked into more than one list")
			}
			seen[cur] = true

			size, err := a.blockSize(cur)
			if err != nil {
				return err
			}
			alloc, err := a.blockAlloc(cur)
			if err != nil {
				return err
			}
			if alloc {
				return violation(InvariantSingleOwner, cur, "allocated block present in a free list")
			}
			if classOf(size, a.classCount) != i {
				return violation(InvariantClassOrder, cur, "block belongs to a different size class")
			}
			sizes = append(sizes, size)

			pred, err := a.readLink(predAddr(cur))
			if err != nil {
				return err
			}
			if pred != prev {
				return violation(InvariantListLinkage, cur, "pred link does not point back to the previous node")
			}

			listFreeCount++
			prev = cur
			cur, err = a.readLink(succAddr(cur))
			if err != nil {
				return err
			}
		}

		if !sort.IsSorted(sizes) {
			return violation(InvariantClassOrder, head, "class list is not sorted ascending by size")
		}
	}

	if listFreeCount != heapFreeCount {
		return violation(InvariantFreeCountsMatch, a.prologueAddr, "free block count from list traversal disagrees with heap traversal")
	}

	return nil
}
