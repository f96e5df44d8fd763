// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package history keeps a fixed-depth ring of previously entered command
// lines with a browse cursor for up/down recall.
package history

import (
	"bytes"
	"fmt"
)

// DefaultDepth is the number of entries kept by the shell
const DefaultDepth = 16

// Ring stores up to depth trimmed command lines. It owns depth+1 slots so
// that head == tail always means empty.
type Ring struct {
	slots [][]byte
	lens  []int
	head  int
	tail  int
	cur   int
}

// StorageSize returns the bytes NewWithStorage needs for the given geometry
func StorageSize(depth, entrySize int) int {
	return (depth + 1) * entrySize
}

// New allocates a ring holding depth entries of up to entrySize bytes
func New(depth, entrySize int) *Ring {
	r, err := NewWithStorage(make([]byte, StorageSize(depth, entrySize)), depth, entrySize)
	if err != nil {
		panic(err)
	}
	return r
}

// NewWithStorage carves the slots out of mem, which must hold at least
// StorageSize(depth, entrySize) bytes
func NewWithStorage(mem []byte, depth, entrySize int) (*Ring, error) {
	if depth < 1 || entrySize < 1 {
		return nil, fmt.Errorf("history: invalid geometry depth=%d entry=%d", depth, entrySize)
	}
	need := StorageSize(depth, entrySize)
	if len(mem) < need {
		return nil, fmt.Errorf("history: need %d bytes of storage, have %d", need, len(mem))
	}
	r := &Ring{
		slots: make([][]byte, depth+1),
		lens:  make([]int, depth+1),
	}
	for i := range r.slots {
		r.slots[i] = mem[i*entrySize : (i+1)*entrySize : (i+1)*entrySize]
	}
	return r, nil
}

// Depth returns the number of entries the ring retains
func (r *Ring) Depth() int {
	return len(r.slots) - 1
}

// Reset forgets every entry
func (r *Ring) Reset() {
	r.head, r.tail, r.cur = 0, 0, 0
	for i := range r.lens {
		r.lens[i] = 0
	}
}

// Append records cmd after trimming surrounding whitespace. Blank input is
// ignored. Repeating the newest entry only rewinds the browse cursor.
func (r *Ring) Append(cmd []byte) {
	cmd = bytes.TrimSpace(cmd)
	if len(cmd) == 0 {
		return
	}

	if r.head != r.tail {
		newest := r.prev(r.head)
		if bytes.Equal(r.entry(newest), cmd) {
			r.cur = r.head
			return
		}
	}

	slot := r.slots[r.head]
	r.lens[r.head] = copy(slot, cmd)

	r.head = r.next(r.head)
	r.cur = r.head
	if r.head == r.tail {
		r.tail = r.next(r.tail)
	}
}

// ScrollUp moves to the previous (older) entry. It returns false when the
// cursor is already at the oldest entry.
func (r *Ring) ScrollUp() ([]byte, bool) {
	if r.cur == r.tail {
		return nil, false
	}
	r.cur = r.prev(r.cur)
	return r.entry(r.cur), true
}

// ScrollDown moves to the next (newer) entry. It returns false when there is
// no newer entry, including when the cursor lands back on the blank line
// past the newest entry.
func (r *Ring) ScrollDown() ([]byte, bool) {
	if r.cur == r.head {
		return nil, false
	}
	r.cur = r.next(r.cur)
	if r.cur == r.head {
		return nil, false
	}
	return r.entry(r.cur), true
}

// Len returns the number of stored entries
func (r *Ring) Len() int {
	n := r.head - r.tail
	if n < 0 {
		n += len(r.slots)
	}
	return n
}

// Entries returns copies of the stored entries, oldest first
func (r *Ring) Entries() []string {
	out := make([]string, 0, r.Len())
	for i := r.tail; i != r.head; i = r.next(i) {
		out = append(out, string(r.entry(i)))
	}
	return out
}

// Position reports head, tail and cursor slot indices
func (r *Ring) Position() (head, tail, cur int) {
	return r.head, r.tail, r.cur
}

func (r *Ring) entry(i int) []byte {
	return r.slots[i][:r.lens[i]]
}

func (r *Ring) next(i int) int {
	if i++; i == len(r.slots) {
		return 0
	}
	return i
}

func (r *Ring) prev(i int) int {
	if i == 0 {
		return len(r.slots) - 1
	}
	return i - 1
}
