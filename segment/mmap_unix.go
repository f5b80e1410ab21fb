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

//go:build linux || darwin || freebsd

package segment

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapSource is the real-OS Source: it reserves maxBytes of anonymous
// virtual address space once, up front, with a single mmap call, and then
// bump-allocates within that reservation. Because the whole reservation
// comes from one mapping, every region Grow hands out is contiguous with
// every other, so coalescing is never restricted to blocks born of the
// same extension. Physical pages are not actually committed until touched
// (ordinary demand-paging behavior for an anonymous mapping), so reserving
// a large maxBytes up front is cheap.
type MmapSource struct {
	mem  []byte
	base unsafe.Pointer
	brk  int
}

// NewMmapSource reserves maxBytes of anonymous, private virtual memory.
func NewMmapSource(maxBytes int) (*MmapSource, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("segment: mmap reservation must be positive, got %d", maxBytes)
	}
	mem, err := unix.Mmap(-1, 0, maxBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("segment: mmap reservation of %d bytes failed: %w", maxBytes, err)
	}
	return &MmapSource{
		mem:  mem,
		base: unsafe.Pointer(&mem[0]),
	}, nil
}

// Grow implements Source.
func (m *MmapSource) Grow(delta int) (unsafe.Pointer, bool) {
	if delta <= 0 || m.brk+delta > len(m.mem) {
		return nil, false
	}
	base := unsafe.Add(m.base, m.brk)
	m.brk += delta
	return base, true
}

// Base implements Source.
func (m *MmapSource) Base() unsafe.Pointer {
	return m.base
}

// Capacity returns the total reserved size, for tests and introspection.
func (m *MmapSource) Capacity() int {
	return len(m.mem)
}

// Close releases the reservation back to the OS. The allocator itself
// never calls this: memory grown from the break is never released while
// the allocator is live. It exists for tests and for callers tearing an
// allocator down entirely.
func (m *MmapSource) Close() error {
	return unix.Munmap(m.mem)
}
