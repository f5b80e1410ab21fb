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
	"fmt"

	"github.com/kfyu16/tsmalloc/freelist"
	"github.com/kfyu16/tsmalloc/segment"
)

// Nolock is the per-thread facade. A C allocator with one free list per
// thread typically accepts freeing a pointer on a different thread than
// the one that allocated it, inserting it into the freer's list with no
// migration. Go has no portable public TLS primitive, and a goroutine
// isn't pinned to an OS thread, so "thread" becomes an explicit Lane index
// a caller supplies (typically one per fixed worker goroutine). That
// cross-thread-free behavior is carried over faithfully as a documented
// user restriction:
// Malloc(lane, n) and Free(lane, buf) never check that the lane passed to
// Free matches the lane the block was allocated on; a block freed on a
// different lane is inserted into that lane's list and may permanently
// fragment it, exactly as freeing across threads does in the original.
//
// Only the call into the shared segment.Extender is serialized across
// lanes; each lane's freelist.List takes no lock of its own, so concurrent
// Malloc/Free calls on the SAME lane from more than one goroutine are
// undefined behavior, the same contract __thread storage gives the
// original's lock-free per-thread lists.
type Nolock struct {
	lanes []freelist.List
	ext   *segment.Extender
}

// NewNolockAllocator creates a Nolock facade with the given number of
// lanes, all sharing one new *segment.Extender over src. That Extender is
// not shared with any other facade, so src is not safe to hand to a second
// facade.
func NewNolockAllocator(src segment.Source, lanes int) (*Nolock, error) {
	if lanes <= 0 {
		return nil, fmt.Errorf("allocator: lanes must be positive, got %d", lanes)
	}
	return &Nolock{
		lanes: make([]freelist.List, lanes),
		ext:   segment.New(src),
	}, nil
}

// NewNolock is a convenience constructor that reserves a fresh ArenaSource
// of the given capacity (or DefaultArenaCapacity if capacity <= 0).
func NewNolock(capacity, lanes int) (*Nolock, error) {
	src, err := newDefaultSource(capacity)
	if err != nil {
		return nil, err
	}
	return NewNolockAllocator(src, lanes)
}

// Lanes returns the number of lanes this facade was built with.
func (a *Nolock) Lanes() int {
	return len(a.lanes)
}

// Malloc allocates size bytes from lane's private free list, extending the
// shared segment (the only operation serialized across lanes) on a miss.
func (a *Nolock) Malloc(lane, size int) []byte {
	n, ok := payloadSize(size)
	if !ok {
		return nil
	}
	l := &a.lanes[lane]

	h := l.Acquire(n)
	if h == nil {
		h = a.ext.Extend(n, false)
		if h == nil {
			return nil
		}
	}
	return h.AsBytes()
}

// Free returns buf to lane's private free list, the lane the CALLER is
// choosing to free on, which need not be the lane that allocated buf. See
// the Nolock doc comment for the consequence of that mismatch.
func (a *Nolock) Free(lane int, buf []byte) {
	h := headerFromBuf(buf, a.ext.Base())
	if h == nil {
		return
	}
	a.lanes[lane].Release(h)
}

// SegmentSize implements Allocator (ignoring any particular lane): it is
// shared across every lane of this facade, which all grow the same
// segment.Extender.
func (a *Nolock) SegmentSize() int64 {
	return a.ext.SegmentSize()
}

// FreeSpaceSize implements Allocator by summing every lane. Prefer
// FreeSpaceSizeOf for a single lane's figure; this total is an ambient
// convenience for callers that don't care which lane holds the free space.
func (a *Nolock) FreeSpaceSize() int64 {
	var total int64
	for i := range a.lanes {
		total += a.lanes[i].FreeSpaceSize()
	}
	return total
}

// FreeSpaceSizeOf returns a single lane's free-space total.
func (a *Nolock) FreeSpaceSizeOf(lane int) int64 {
	return a.lanes[lane].FreeSpaceSize()
}

// Malloc/Free above index a.lanes directly and will panic on an
// out-of-range lane, same as indexing any Go slice out of bounds. Lane
// identity is the caller's responsibility, the same way per-thread
// identity is the calling thread's responsibility in the original.

// Lane returns a single-lane Allocator view bound to lane i, for callers
// that want the plain Allocator interface (e.g. a worker goroutine that
// only ever touches its own lane).
func (a *Nolock) Lane(i int) Allocator {
	return nolockLane{a: a, lane: i}
}

type nolockLane struct {
	a    *Nolock
	lane int
}

var _ Allocator = nolockLane{}

func (l nolockLane) Malloc(size int) []byte { return l.a.Malloc(l.lane, size) }
func (l nolockLane) Free(buf []byte)        { l.a.Free(l.lane, buf) }
func (l nolockLane) SegmentSize() int64     { return l.a.SegmentSize() }
func (l nolockLane) FreeSpaceSize() int64   { return l.a.FreeSpaceSizeOf(l.lane) }
