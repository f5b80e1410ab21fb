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
	"fmt"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// ArenaSource is the default, portable Source: a single pre-reserved []byte
// that the break bumps through. Go slices may be relocated by the runtime
// when grown with append/make, which would invalidate every address handed
// out so far; ArenaSource avoids that by reserving its full capacity up
// front and never reallocating, the same discipline unsafex/malloc's
// BuddyAllocator and BitmapAllocator use for their own fixed arenas.
type ArenaSource struct {
	arena []byte
	base  unsafe.Pointer
	brk   int // bytes of arena already handed out
}

// NewArenaSource reserves capacity bytes up front. The region is allocated
// with dirtmake.Bytes instead of make: real program-break/mmap memory is
// not zeroed by the allocator, only by the OS on first touch, so this
// mirrors that contract instead of paying for Go's usual zero-fill.
func NewArenaSource(capacity int) (*ArenaSource, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("segment: arena capacity must be positive, got %d", capacity)
	}
	arena := dirtmake.Bytes(capacity, capacity)
	return &ArenaSource{
		arena: arena,
		base:  unsafe.Pointer(&arena[0]),
	}, nil
}

// Grow implements Source.
func (a *ArenaSource) Grow(delta int) (unsafe.Pointer, bool) {
	if delta <= 0 || a.brk+delta > len(a.arena) {
		return nil, false
	}
	base := unsafe.Add(a.base, a.brk)
	a.brk += delta
	return base, true
}

// Base implements Source.
func (a *ArenaSource) Base() unsafe.Pointer {
	return a.base
}

// Capacity returns the total reserved size, for tests and introspection.
func (a *ArenaSource) Capacity() int {
	return len(a.arena)
}
