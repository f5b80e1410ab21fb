/*
 * Copyright 2026 tsmalloc Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package allocator binds the free-list engine to a concurrency model: a
// single global list behind one mutex (Lock), or one list per caller-chosen
// lane with no lock of its own (Nolock). Both share the same segment
// extender, block layout, best-fit placement, split, and coalesce rules.
package allocator

import (
	"fmt"

	"github.com/kfyu16/tsmalloc/block"
	"github.com/kfyu16/tsmalloc/segment"
)

// Allocator is the public shape both facades implement: size==0 returns
// nil with no state change, a nil buf to Free is a no-op, and a non-nil buf
// must have been returned by this same facade instance and not yet freed.
// Violating that is undefined behavior, caught best-effort via the
// header's magic word and state, never guaranteed.
type Allocator interface {
	Malloc(size int) []byte
	Free(buf []byte)
	SegmentSize() int64
	FreeSpaceSize() int64
}

// DefaultArenaCapacity is used by the convenience constructors when a
// caller doesn't supply its own segment.Source.
const DefaultArenaCapacity = 64 << 20 // 64MB

// newDefaultSource builds the portable ArenaSource convenience
// constructors fall back to, mirroring unsafex/malloc's
// New*WithBlockSize/New* pairing: one default entry point, one fully
// configurable one.
func newDefaultSource(capacity int) (segment.Source, error) {
	if capacity <= 0 {
		capacity = DefaultArenaCapacity
	}
	return segment.NewArenaSource(capacity)
}

func payloadSize(size int) (uint64, bool) {
	if size <= 0 {
		return 0, false
	}
	return uint64(size), true
}

func headerFromBuf(buf []byte, base uintptr) *block.Header {
	if len(buf) == 0 {
		return nil
	}
	h := block.FromBytes(buf)
	validateBounds(h, base)
	if h.State() != block.Allocated {
		panic("allocator: free of a block not currently allocated (double free?)")
	}
	return h
}

// validateBounds panics if h's address lies before the segment's base, the
// one bound FromBytes' magic-word check cannot catch on its own (a foreign
// pointer whose bytes happen to collide with the magic word).
func validateBounds(h *block.Header, base uintptr) {
	if h.Addr() < base {
		panic(fmt.Sprintf("allocator: payload pointer %#x lies before segment base %#x", h.Addr(), base))
	}
}
