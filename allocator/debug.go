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
	"io"
	"strconv"

	"github.com/kfyu16/tsmalloc/block"
	"github.com/kfyu16/tsmalloc/freelist"
	"github.com/kfyu16/tsmalloc/internal/hack"
)

// DebugDump walks list head to tail and writes one line per free block
// (address, size, state) to w. It never allocates a string: each line is
// built in a reused []byte and handed to w via hack.ByteSliceToString, the
// same zero-copy trick bufiox uses on its hot paths. This is debug/test
// tooling, never called from a shipped binary.
func DebugDump(w io.Writer, list *freelist.List) {
	var line []byte
	n := 0
	for h := list.Head(); h != nil; h = h.NextFree() {
		line = line[:0]
		line = append(line, "block["...)
		line = strconv.AppendInt(line, int64(n), 10)
		line = append(line, "] addr="...)
		line = strconv.AppendUint(line, uint64(h.Addr()), 16)
		line = append(line, " size="...)
		line = strconv.AppendUint(line, h.Size(), 10)
		line = append(line, " state="...)
		line = append(line, stateString(h.State())...)
		line = append(line, '\n')

		io.WriteString(w, hack.ByteSliceToString(line))
		n++
	}
}

func stateString(s block.State) string {
	if s == block.Free {
		return "free"
	}
	return "allocated"
}
