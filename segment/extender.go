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

package segment

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/kfyu16/tsmalloc/block"
)

// Extender wraps a Source with a monotonically growing lifetime counter
// and the concurrency contract of the facade that uses it. Extend(locked=
// true) takes no lock, so one Extender is safe only when every caller uses
// the same mode: the allocator facades each build their own.
//
// Lock facade: the caller already holds its own mutex when it calls Extend
// with locked=true, so Extend itself takes no additional lock.
//
// Nolock facade: many lanes call Extend(locked=false) concurrently with no
// lock of their own; Extend takes mu only around the Source.Grow call and
// releases it before initializing the header, because once Grow returns,
// the returned region's address range is exclusively owned by the calling
// goroutine. No other lane's Grow call can return an overlapping range.
type Extender struct {
	mu          sync.Mutex
	src         Source
	segmentSize int64 // atomic; cumulative bytes ever obtained from src
}

// New wraps src. Two Extenders over the same src do not serialize against
// each other, and each keeps its own segment counter.
func New(src Source) *Extender {
	return &Extender{src: src}
}

// Extend grows the segment by sizeof(header)+payloadSize bytes and returns
// a freshly initialized, Allocated header over the new region, or nil if
// the underlying Source refused to grow. locked must be true when the
// caller already holds its own mutex around the whole operation (the Lock
// facade); false when Extend must serialize the Source.Grow call itself
// (the Nolock facade).
func (e *Extender) Extend(payloadSize uint64, locked bool) *block.Header {
	delta := int(uint64(block.Size) + payloadSize)

	var (
		addr unsafe.Pointer
		ok   bool
	)
	if locked {
		addr, ok = e.src.Grow(delta)
	} else {
		e.mu.Lock()
		addr, ok = e.src.Grow(delta)
		e.mu.Unlock()
	}
	if !ok {
		return nil
	}

	atomic.AddInt64(&e.segmentSize, int64(delta))
	return block.New(addr, payloadSize)
}

// SegmentSize returns the cumulative number of bytes ever obtained from the
// underlying Source through this Extender.
func (e *Extender) SegmentSize() int64 {
	return atomic.LoadInt64(&e.segmentSize)
}

// Base returns the address of the first byte this Extender's Source ever
// produced, for bounds-checking payload pointers.
func (e *Extender) Base() uintptr {
	return uintptr(e.src.Base())
}
