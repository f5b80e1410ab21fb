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

package allocator

import (
	"sync"

	"github.com/kfyu16/tsmalloc/freelist"
	"github.com/kfyu16/tsmalloc/segment"
)

// Lock is the coarse-grained facade: a single process-wide free list
// guarded by one mutex. Malloc holds mu for every free-list operation and
// for the segment extension on a miss, so Extend needs no lock of its own:
// the caller already holds this one. Free checks the buffer's header before
// taking mu and holds it around the list release; SegmentSize and
// FreeSpaceSize read atomic counters without taking mu.
type Lock struct {
	mu   sync.Mutex
	list freelist.List
	ext  *segment.Extender
}

var _ Allocator = (*Lock)(nil)

// NewLockAllocator binds a Lock facade to src, wrapping it in a new
// *segment.Extender of its own. Facades built by separate constructor
// calls never share an Extender, its mutex, or its segment counter, so src
// is not safe to hand to a second facade.
func NewLockAllocator(src segment.Source) *Lock {
	return &Lock{ext: segment.New(src)}
}

// NewLock is a convenience constructor that reserves a fresh ArenaSource of
// the given capacity (or DefaultArenaCapacity if capacity <= 0).
func NewLock(capacity int) (*Lock, error) {
	src, err := newDefaultSource(capacity)
	if err != nil {
		return nil, err
	}
	return NewLockAllocator(src), nil
}

// Malloc implements Allocator.
func (a *Lock) Malloc(size int) []byte {
	n, ok := payloadSize(size)
	if !ok {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.list.Acquire(n)
	if h == nil {
		h = a.ext.Extend(n, true)
		if h == nil {
			return nil
		}
	}
	return h.AsBytes()
}

// Free implements Allocator.
func (a *Lock) Free(buf []byte) {
	h := headerFromBuf(buf, a.ext.Base())
	if h == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.list.Release(h)
}

// SegmentSize implements Allocator. It reports this facade's own
// *segment.Extender counter.
func (a *Lock) SegmentSize() int64 {
	return a.ext.SegmentSize()
}

// FreeSpaceSize implements Allocator.
func (a *Lock) FreeSpaceSize() int64 {
	return a.list.FreeSpaceSize()
}
