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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfyu16/tsmalloc/block"
)

func newTestNolock(t *testing.T, lanes int) *Nolock {
	t.Helper()
	a, err := NewNolock(1<<20, lanes)
	require.NoError(t, err)
	return a
}

func TestNolockRejectsNonPositiveLanes(t *testing.T) {
	_, err := NewNolock(1<<20, 0)
	assert.Error(t, err)
}

func TestNolockPerLaneRoundTrip(t *testing.T) {
	a := newTestNolock(t, 4)

	p := a.Malloc(0, 100)
	require.NotNil(t, p)
	a.Free(0, p)

	assert.EqualValues(t, block.Size+100, a.FreeSpaceSizeOf(0))
	assert.EqualValues(t, 0, a.FreeSpaceSizeOf(1))
}

func TestNolockSegmentSizeSharedAcrossLanes(t *testing.T) {
	a := newTestNolock(t, 2)
	a.Malloc(0, 100)
	a.Malloc(1, 200)

	assert.EqualValues(t, 2*int64(block.Size)+300, a.SegmentSize())
}

func TestNolockFreeOnDifferentLaneFragmentsThatLane(t *testing.T) {
	a := newTestNolock(t, 2)

	buf := a.Malloc(0, 64)
	require.NotNil(t, buf)

	// documented consequence of the per-lane design: freeing on a
	// different lane than the one that allocated the block is accepted
	// and inserts it into the FREEING lane's list, not the owner's.
	a.Free(1, buf)

	assert.EqualValues(t, 0, a.FreeSpaceSizeOf(0))
	assert.EqualValues(t, block.Size+64, a.FreeSpaceSizeOf(1))
}

func TestNolockLaneViewImplementsAllocator(t *testing.T) {
	a := newTestNolock(t, 2)
	var view Allocator = a.Lane(0)

	p := view.Malloc(50)
	require.NotNil(t, p)
	view.Free(p)
	assert.EqualValues(t, block.Size+50, view.FreeSpaceSize())
}

func TestNolockConcurrentLanesDoNotRace(t *testing.T) {
	const lanes = 8
	a := newTestNolock(t, lanes)

	var wg sync.WaitGroup
	for lane := 0; lane < lanes; lane++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			var live [][]byte
			for i := 0; i < 2000; i++ {
				buf := a.Malloc(lane, 32+i%64)
				if buf == nil {
					continue
				}
				live = append(live, buf)
				if len(live) > 8 {
					a.Free(lane, live[0])
					live = live[1:]
				}
			}
			for _, buf := range live {
				a.Free(lane, buf)
			}
		}(lane)
	}
	wg.Wait()
}
