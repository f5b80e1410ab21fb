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

// Package block defines the fixed metadata prefix every allocator block
// carries, and the one place raw address arithmetic is allowed: converting
// between a header and the payload bytes handed out to callers.
package block

import "unsafe"

// State is the lifecycle state of a block. There is no separate value for
// a block absorbed by coalescing: its header is no longer addressed as a
// distinct object once its neighbor has grown to cover it.
type State uint32

const (
	Free State = iota
	Allocated
)

// magic flags a header as one this package wrote, to catch garbage
// pointers passed to FromBytes. It is never cleared on free, so it does not
// by itself catch a double free. It never changes placement, split, or
// coalesce behavior.
const magic uint32 = 0x6d616c6c // "mall"

// Header is the fixed-size metadata prefix of a block. Every byte the
// segment extender has ever produced belongs to exactly one Header's region
// (header + payload); Headers are discovered only through HeaderOf/Payload,
// never by ad-hoc pointer math elsewhere in the module.
type Header struct {
	size     uint64 // payload size in bytes, excludes the header itself
	state    State
	check    uint32 // magic, set on every header this package initializes
	prevFree *Header
	nextFree *Header
}

// Size of the header in bytes; payloads inherit the header's alignment.
const Size = unsafe.Sizeof(Header{})

// At reinterprets p as a *Header. p must point at the start of a region at
// least Size bytes long that either already holds a valid header or is
// about to be initialized field by field and stamped (as freelist's split
// does).
func At(p unsafe.Pointer) *Header {
	return (*Header)(p)
}

// New initializes the header at p for a freshly carved region of the given
// payload size, marks it Allocated, and clears its free-list links.
func New(p unsafe.Pointer, payloadSize uint64) *Header {
	h := At(p)
	h.size = payloadSize
	h.state = Allocated
	h.prevFree = nil
	h.nextFree = nil
	h.Stamp()
	return h
}

// Stamp marks h as a header this package owns. New calls it automatically;
// freelist's split calls it for the second header a split carves out of
// previously unstamped arena bytes. Every header this allocator ever
// hands to a caller, directly or via split, must be stamped exactly once.
func (h *Header) Stamp() {
	h.check = magic
}

// Addr returns h's own address, for ordering and adjacency comparisons.
func (h *Header) Addr() uintptr {
	return uintptr(unsafe.Pointer(h))
}

// Size returns the block's payload size in bytes.
func (h *Header) Size() uint64 {
	return h.size
}

// SetSize updates the payload size recorded in the header. Used by split
// (shrinking the low half) and coalesce (growing the absorbing neighbor).
func (h *Header) SetSize(n uint64) {
	h.size = n
}

// State returns whether the block is on a free list or handed out.
func (h *Header) State() State {
	return h.state
}

// SetState transitions the block between Free and Allocated.
func (h *Header) SetState(s State) {
	h.state = s
}

// Valid reports whether h looks like a header this package initialized.
// It is a best-effort corruption check, not a guarantee, and stays true
// for a header after its block is freed: a
// caller handing back a pointer never returned by this module, or reusing
// one after free, is undefined behavior per the allocator's contract.
func (h *Header) Valid() bool {
	return h != nil && h.check == magic
}

// PrevFree returns the previous node on the free list h belongs to, or nil.
func (h *Header) PrevFree() *Header { return h.prevFree }

// NextFree returns the next node on the free list h belongs to, or nil.
func (h *Header) NextFree() *Header { return h.nextFree }

// SetPrevFree sets h's previous-free link.
func (h *Header) SetPrevFree(p *Header) { h.prevFree = p }

// SetNextFree sets h's next-free link.
func (h *Header) SetNextFree(n *Header) { h.nextFree = n }

// Payload returns the address handed out to callers: the first byte after
// the header.
func (h *Header) Payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), Size)
}

// End returns the address one past the end of h's region (header+payload):
// either the next header in a contiguous segment, or the segment's current
// break.
func (h *Header) End() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), uintptr(Size)+uintptr(h.size))
}

// SplitPoint returns the address at which a second header would begin if
// the low lowSize bytes of h's payload were carved off as their own block.
// It is the one raw-address computation split performs, confined here so
// no other package does header arithmetic directly.
func (h *Header) SplitPoint(lowSize uint64) unsafe.Pointer {
	return unsafe.Add(h.Payload(), lowSize)
}

// HeaderOf recovers the header that precedes a payload pointer previously
// returned by Payload. It is the typed-offset counterpart of the original
// C allocator's `ptr - sizeof(meta_data_t)`.
func HeaderOf(payload unsafe.Pointer) *Header {
	return At(unsafe.Add(payload, -int(Size)))
}

// AdjacentTo reports whether h's region ends exactly where other begins,
// i.e. the two blocks are physically adjacent with no gap. It is the sole
// test coalesce uses to decide whether two free blocks may be merged.
func (h *Header) AdjacentTo(other *Header) bool {
	return h.End() == unsafe.Pointer(other)
}

// AsBytes exposes the block's payload as a []byte of the recorded size,
// the public shape Malloc returns (mirrors unsafex/malloc's Alloc/Free
// []byte contract rather than a bare pointer).
func (h *Header) AsBytes() []byte {
	return unsafe.Slice((*byte)(h.Payload()), h.size)
}

// FromBytes recovers the header owning a []byte previously produced by
// AsBytes. Panics if buf's data pointer does not look like a header this
// package wrote. This is the allocator's only defense against
// garbage/foreign pointers, not a guarantee.
func FromBytes(buf []byte) *Header {
	if len(buf) == 0 {
		return nil
	}
	h := HeaderOf(unsafe.Pointer(&buf[0]))
	if !h.Valid() {
		panic("block: pointer not allocated by this package, or already freed")
	}
	return h
}
