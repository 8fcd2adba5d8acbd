// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package udmalloc

import "testing"

func TestCheckHeapPassesThroughAllocationChurn(t *testing.T) {
	a := newTestAllocator(t)

	var ptrs []int64
	for i := 0; i < 40; i++ {
		p, err := a.Allocate(int64(8 + i%64))
		if err != nil {
			t.Fatal(err)
		}
		ptrs = append(ptrs, p)
		if i%3 == 0 && len(ptrs) > 2 {
			if err := a.Free(ptrs[len(ptrs)-2]); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := a.CheckHeap("TestCheckHeapPassesThroughAllocationChurn"); err != nil {
		t.Fatal(err)
	}
}

func TestStatsAccountsForAllBytes(t *testing.T) {
	a := newTestAllocator(t)

	p1, _ := a.Allocate(32)
	_, _ = a.Allocate(64)
	if err := a.Free(p1); err != nil {
		t.Fatal(err)
	}

	st, err := a.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalBytes != st.AllocBytes+st.FreeBytes {
		t.Fatalf("TotalBytes (%d) should equal AllocBytes+FreeBytes (%d+%d)", st.TotalBytes, st.AllocBytes, st.FreeBytes)
	}
	if st.AllocBlocks == 0 {
		t.Fatal("expected at least one allocated block")
	}
	if st.FreeBlocks == 0 {
		t.Fatal("expected at least one free block")
	}
}

func TestCheckHeapDetectsCorruptedFooter(t *testing.T) {
	a := newTestAllocator(t)

	p, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}

	h := p - wordSize
	size, err := a.blockSize(h)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the footer so it no longer matches the header.
	if err := a.writeWord(footerAddr(h, size), packWord(size+8, true, false)); err != nil {
		t.Fatal(err)
	}

	err = a.CheckHeap("TestCheckHeapDetectsCorruptedFooter")
	if err == nil {
		t.Fatal("expected CheckHeap to detect the corrupted footer")
	}
	ive, ok := err.(*InvariantViolationError)
	if !ok {
		t.Fatalf("expected *InvariantViolationError, got %T: %v", err, err)
	}
	if ive.Tag != InvariantFooterMatch {
		t.Fatalf("expected tag %s, got %s", InvariantFooterMatch, ive.Tag)
	}
}

func TestCheckHeapDetectsDoubleLinkedFreeBlock(t *testing.T) {
	a := newTestAllocator(t)

	p, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}

	h := p - wordSize
	size, err := a.blockSize(h)
	if err != nil {
		t.Fatal(err)
	}
	i := classOf(size, a.classCount)
	// Link the already-listed free block into a second class by hand,
	// simulating a single-ownership violation.
	j := (i + 1) % a.classCount
	if j == i {
		j = a.classCount - 1
	}
	otherHead, err := a.classHead(j)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.writeLink(predAddr(h), 0); err != nil {
		t.Fatal(err)
	}
	if err := a.writeLink(succAddr(h), otherHead); err != nil {
		t.Fatal(err)
	}
	if otherHead != 0 {
		if err := a.writeLink(predAddr(otherHead), h); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.setClassHead(j, h); err != nil {
		t.Fatal(err)
	}

	err = a.CheckHeap("TestCheckHeapDetectsDoubleLinkedFreeBlock")
	if err == nil {
		t.Fatal("expected CheckHeap to detect the free block linked twice")
	}
}
