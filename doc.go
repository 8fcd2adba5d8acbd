// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package udmalloc implements a single-threaded dynamic memory allocator
// managing one contiguous, monotonically growable heap region.
//
// The allocator sits above a HeapMemory, a sbrk-like primitive exposing only
// heap extension and heap_lo/heap_hi queries. Everything above that line -
// block layout, the segregated free-list index, placement/splitting,
// coalescing and the public Allocate/Free/Reallocate/ZeroAllocate entry
// points - lives in this package.
//
/*

Heap layout

The heap, as seen through a HeapMemory, is a linear sequence of bytes:

	+-------+-------+-----+-------+---------+----------+----------+
	| head0 | head1 | ... |headK-1| prologue | blocks...| epilogue |
	+-------+-------+-----+-------+---------+----------+----------+
	|                             |                     |          |
	mem.Lo()                 heapListP            epilogue     mem.Hi()

head0..headK-1 are the K segregated free-list heads, one 4-byte link each,
followed by one zero padding word when K is even so that payloads stay
8-byte aligned.
Class i holds free blocks with size in (2^(i+4), 2^(i+5)], the last class
being unbounded. heapListP is the address immediately after the 8-byte
prologue, i.e. the header address of the first real block.

Block layout

Every block is a contiguous, 8-byte aligned run of at least 16 bytes:

	+--------+----------------------------------------+--------+
	| header |             payload / links             | footer |
	+--------+----------------------------------------+--------+
	4 bytes                                              4 bytes, free blocks only

The header (and footer, for free blocks) is a packed 32-bit word:

	size | prevAlloc<<1 | alloc

size is always a multiple of 8 (the low 3 bits are free for flags).
Allocated blocks carry no footer - the footer-elision optimization - so a
block's left neighbour can only be located through its own prevAlloc bit;
prevBlockAddr is only meaningful when the current block's prevAlloc bit is
false.

Free blocks store their doubly-linked list pointers, pred and succ, as
4-byte absolute heap addresses in the first 8 payload bytes; for a MemHeap,
whose Lo() is 0, these equal offsets from mem.Lo(). Address 0 is the null
sentinel: it can never be a real block address because the class-head
array and the prologue occupy the bytes at and immediately after mem.Lo().

*/
package udmalloc
