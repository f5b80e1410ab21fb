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

// Package segment wraps a program-break-style primitive as an external
// collaborator. It never touches free lists; its job is to hand back a
// contiguous, ever-growing region of memory, and the only header it writes
// is the one Extender initializes over each newly grown region.
package segment

import "unsafe"

// Source is the pluggable backing store standing in for "the program-break
// primitive": a single call that advances a monotonic break by delta bytes
// and returns the base address of the newly available region, or ok=false
// on failure (out of address space, reservation exhausted, etc). Delta is
// always positive; Source never shrinks.
type Source interface {
	// Grow advances the break by delta bytes and returns the address of the
	// start of the newly available region. ok is false if the primitive
	// failed; no state changes in that case.
	Grow(delta int) (base unsafe.Pointer, ok bool)

	// Base returns the address of the very first byte ever handed out by
	// this source. Used to check that a freed payload's header does not lie
	// before initial_break; the upper bound is not checked.
	Base() unsafe.Pointer
}
