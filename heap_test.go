// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package udmalloc

import (
	"bytes"
	"testing"
)

func TestMemHeapExtendAndBounds(t *testing.T) {
	h := NewMemHeap()
	if h.Hi() >= h.Lo() {
		t.Fatalf("empty heap should have Hi() < Lo(), got Hi=%d Lo=%d", h.Hi(), h.Lo())
	}

	old, err := h.Extend(64)
	if err != nil {
		t.Fatal(err)
	}
	if old != 0 {
		t.Fatalf("first Extend should return old break 0, got %d", old)
	}
	if h.Hi() != 63 {
		t.Fatalf("Hi() = %d, want 63", h.Hi())
	}
}

func TestMemHeapReadWriteRoundTrip(t *testing.T) {
	h := NewMemHeap()
	if _, err := h.Extend(4096 * 3); err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0xAB}, 100)
	if _, err := h.WriteAt(data, 4090); err != nil { // crosses a page boundary
		t.Fatal(err)
	}

	got := make([]byte, 100)
	if _, err := h.ReadAt(got, 4090); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, got) {
		t.Fatalf("read back %x, want %x", got, data)
	}
}

func TestMemHeapReadsZeroBeforeWrite(t *testing.T) {
	h := NewMemHeap()
	if _, err := h.Extend(8192); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 16)
	if _, err := h.ReadAt(got, 4000); err != nil {
		t.Fatal(err)
	}
	for _, b := range got {
		if b != 0 {
			t.Fatalf("unwritten page should read back zero, got %x", got)
		}
	}
}

func TestMemHeapWriteOutOfBounds(t *testing.T) {
	h := NewMemHeap()
	if _, err := h.Extend(16); err != nil {
		t.Fatal(err)
	}
	if _, err := h.WriteAt([]byte{1, 2, 3, 4}, 14); err == nil {
		t.Fatal("expected out-of-bounds WriteAt to fail")
	}
}

func TestFaultyHeapRefusesPastCeiling(t *testing.T) {
	f := &FaultyHeap{HeapMemory: NewMemHeap(), Ceiling: 64}
	if _, err := f.Extend(64); err != nil {
		t.Fatalf("extend up to ceiling should succeed: %v", err)
	}
	if _, err := f.Extend(1); err != ErrOutOfMemory {
		t.Fatalf("extend past ceiling should fail with ErrOutOfMemory, got %v", err)
	}
}
