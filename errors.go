// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package udmalloc

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned, unwrapped, whenever the host HeapMemory refuses
// to Extend. Allocating entry points return it together with a null
// pointer, so callers can tell OOM apart from InvalidArgument by comparing
// with == or errors.Is.
var ErrOutOfMemory = errors.New("udmalloc: out of memory")

// InvalidArgumentError reports a caller-supplied argument that the
// allocator cannot act on, mirroring the teacher's ErrINVAL{msg, arg}.
type InvalidArgumentError struct {
	Msg string
	Arg interface{}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("udmalloc: invalid argument: %s (%v)", e.Msg, e.Arg)
}

// InvariantTag names one of the invariants I1-I9 from the heap data model.
type InvariantTag string

const (
	InvariantBlockSum        InvariantTag = "I1"
	InvariantPrevAlloc       InvariantTag = "I2"
	InvariantNoAdjacentFree  InvariantTag = "I3"
	InvariantFooterMatch     InvariantTag = "I4"
	InvariantSingleOwner     InvariantTag = "I5"
	InvariantClassOrder      InvariantTag = "I6"
	InvariantListLinkage     InvariantTag = "I7"
	InvariantFreeCountsMatch InvariantTag = "I8"
	InvariantAlignment       InvariantTag = "I9"
)

// InvariantViolationError is returned by CheckHeap when it finds the heap in
// a state that contradicts one of I1-I9. It mirrors the shape of the
// teacher's ErrILSEQ{Type, Off, Arg, Arg2, More}, renamed to this package's
// vocabulary.
type InvariantViolationError struct {
	Origin string
	Tag    InvariantTag
	Addr   int64
	Detail string
	Cause  error
}

func (e *InvariantViolationError) Error() string {
	msg := fmt.Sprintf("udmalloc: %s: invariant %s violated at %#x: %s", e.Origin, e.Tag, e.Addr, e.Detail)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *InvariantViolationError) Unwrap() error { return e.Cause }
