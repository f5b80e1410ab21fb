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

// Package freelist is the free-list management engine: best-fit search,
// address-ordered insertion, split, and adjacency coalescing. It is the
// hard, tightly-invariant core of the allocator.
//
// A List is not itself synchronized. The Lock facade guards one List with
// one mutex; the Nolock facade gives each lane its own List and never
// shares it, so no List method needs to take a lock of its own.
package freelist

import (
	"sync/atomic"

	"github.com/kfyu16/tsmalloc/block"
)

// List is the (head, tail) pair identifying one free list: all free blocks
// belonging to one allocator domain (global for Lock, per-lane for
// Nolock), kept in strictly ascending address order.
type List struct {
	head, tail *block.Header
	freeSpace  int64 // atomic; Σ (sizeof(header)+size) over every block on this list
}

// FreeSpaceSize returns the current total bytes (header+payload) held free
// on this list.
func (l *List) FreeSpaceSize() int64 {
	return atomic.LoadInt64(&l.freeSpace)
}

// Head returns the first free block, or nil if the list is empty. Exposed
// for debug dumps and tests; engine code should prefer Find/Acquire/Release.
func (l *List) Head() *block.Header {
	return l.head
}

// corrupt reports an invariant violation: a programming bug the allocator
// must abort on, never surface as a recoverable error. A panic with
// nothing above it to recover is Go's closest equivalent of process abort.
func corrupt(msg string) {
	panic("freelist: " + msg)
}

// Find performs a best-fit search: scan head to tail, short-circuit on an
// exact size match, otherwise track the smallest block strictly larger
// than size. Ties are impossible because the
// comparison against the running best is strict; when two candidates would
// tie, the earliest-scanned (address-lowest) one already won and is never
// replaced.
func (l *List) Find(size uint64) *block.Header {
	var best *block.Header
	bestSize := ^uint64(0) // +infinity sentinel

	for n := l.head; n != nil; n = n.NextFree() {
		if n.State() != block.Free {
			corrupt("node on free list not marked free")
		}
		switch {
		case n.Size() == size:
			return n
		case n.Size() > size && n.Size() < bestSize:
			bestSize = n.Size()
			best = n
		}
	}
	return best
}

// insertOrdered splices b into the list at the position that keeps address
// order: before the first node whose address exceeds b's, or at the tail if
// none exists. b must not already be linked into any list.
func (l *List) insertOrdered(b *block.Header) {
	var prev *block.Header
	n := l.head
	for n != nil && n.Addr() < b.Addr() {
		prev = n
		n = n.NextFree()
	}

	b.SetPrevFree(prev)
	b.SetNextFree(n)

	if prev != nil {
		prev.SetNextFree(b)
	} else {
		l.head = b
	}
	if n != nil {
		n.SetPrevFree(b)
	} else {
		l.tail = b
	}
}

// remove unlinks b from the list. b must currently be a member.
func (l *List) remove(b *block.Header) {
	prev, next := b.PrevFree(), b.NextFree()

	if prev != nil {
		prev.SetNextFree(next)
	} else {
		l.head = next
	}
	if next != nil {
		next.SetPrevFree(prev)
	} else {
		l.tail = prev
	}

	b.SetPrevFree(nil)
	b.SetNextFree(nil)
}

// Acquire satisfies a request of size bytes from this list: find a
// best-fit block, then either split it (remainder strictly larger than
// one header) or hand it out whole. Returns nil if no block on this list
// is large enough; the caller (a facade) must then extend the segment
// itself.
func (l *List) Acquire(size uint64) *block.Header {
	b := l.Find(size)
	if b == nil {
		return nil
	}

	// The split predicate is strict '>', not '>=': a remainder of exactly
	// sizeof(header) would be a zero-payload free block, which is never
	// allowed. In that case the whole block is handed out instead.
	if b.Size() > size+uint64(block.Size) {
		l.split(b, size)
	} else {
		l.remove(b)
		atomic.AddInt64(&l.freeSpace, -(int64(b.Size()) + int64(block.Size)))
	}

	b.SetState(block.Allocated)
	return b
}

// split carves a size-byte allocation out of the low part of b, leaving the
// remainder as a new free block in b's old list position. b must already be
// known to have enough remainder to leave a non-empty payload.
func (l *List) split(b *block.Header, size uint64) {
	remainder := b.Size() - size - uint64(block.Size)
	if remainder == 0 {
		corrupt("split would create a zero-payload free block")
	}

	low := b
	high := block.At(low.SplitPoint(size))
	high.Stamp()
	high.SetSize(remainder)
	high.SetState(block.Free)
	high.SetPrevFree(low.PrevFree())
	high.SetNextFree(low.NextFree())

	if p := high.PrevFree(); p != nil {
		p.SetNextFree(high)
	} else {
		l.head = high
	}
	if n := high.NextFree(); n != nil {
		n.SetPrevFree(high)
	} else {
		l.tail = high
	}

	low.SetSize(size)
	low.SetPrevFree(nil)
	low.SetNextFree(nil)

	atomic.AddInt64(&l.freeSpace, -(int64(size) + int64(block.Size)))
}

// Release returns b to this list: insert it in address order, then
// coalesce with its right neighbor and, after that, its left neighbor, in
// that order, so that when the left neighbor absorbs b, b already carries
// any rightward merge it picked up.
func (l *List) Release(b *block.Header) {
	if b.State() != block.Allocated {
		corrupt("free of a block not marked allocated")
	}

	atomic.AddInt64(&l.freeSpace, int64(b.Size())+int64(block.Size))
	b.SetState(block.Free)
	l.insertOrdered(b)

	l.coalesceRight(b)
	l.coalesceLeft(b)
}

// coalesceRight absorbs b's right neighbor into b if they are physically
// adjacent. Coalescing never changes the list's total free-space count: the
// absorbed header's bytes become payload of the merged block, so
// header+payload summed over the merged block equals the sum over the two
// originals.
func (l *List) coalesceRight(b *block.Header) {
	right := b.NextFree()
	if right == nil || !b.AdjacentTo(right) {
		return
	}
	if right.State() != block.Free {
		corrupt("right neighbor on free list not marked free")
	}

	b.SetSize(b.Size() + right.Size() + uint64(block.Size))

	next := right.NextFree()
	b.SetNextFree(next)
	if next != nil {
		next.SetPrevFree(b)
	} else {
		l.tail = b
	}
}

// coalesceLeft absorbs b into its left neighbor if they are physically
// adjacent. Must run after coalesceRight so the merged size already
// reflects any rightward absorption.
func (l *List) coalesceLeft(b *block.Header) {
	left := b.PrevFree()
	if left == nil || !left.AdjacentTo(b) {
		return
	}
	if left.State() != block.Free {
		corrupt("left neighbor on free list not marked free")
	}

	left.SetSize(left.Size() + b.Size() + uint64(block.Size))

	next := b.NextFree()
	left.SetNextFree(next)
	if next != nil {
		next.SetPrevFree(left)
	} else {
		l.tail = left
	}
}
