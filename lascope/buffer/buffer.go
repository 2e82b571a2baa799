// Package buffer holds the per-channel sample history.
//
// Eight bounded bit buffers advance in lockstep: every accepted sample
// contributes exactly one bit to each channel, and a global counter tracks
// how many samples have been accepted since the last clear. Appends come
// from a single writer (the ingest loop); readers get consistent state at
// Snapshot boundaries only.
package buffer

import "github.com/openla/lascope/lascope/bit"

// Channels is the number of logic channels captured per sample.
const Channels = 8

// DefaultCapacity is the per-channel history depth used when none is
// configured.
const DefaultCapacity = 4096

// Ring is a fixed-capacity bit history for all eight channels.
type Ring struct {
	bits     [Channels][]uint8
	capacity int
	head     int    // index of the oldest stored bit
	size     int    // stored bits per channel, <= capacity
	total    uint64 // samples accepted since the last clear
}

// NewRing creates a ring with the given per-channel capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Ring{capacity: capacity}
	for i := range r.bits {
		r.bits[i] = make([]uint8, capacity)
	}
	return r
}

// Append stores one bit per channel from the sample, evicting the oldest
// entry once the ring is full, and advances the sample counter.
func (r *Ring) Append(sample byte) {
	pos := (r.head + r.size) % r.capacity
	for ch := 0; ch < Channels; ch++ {
		r.bits[ch][pos] = bit.GetBitValue(uint8(ch), sample)
	}
	if r.size < r.capacity {
		r.size++
	} else {
		r.head = (r.head + 1) % r.capacity
	}
	r.total++
}

// Len returns the stored bits per channel: min(total, capacity).
func (r *Ring) Len() int {
	return r.size
}

// Capacity returns the configured per-channel depth.
func (r *Ring) Capacity() int {
	return r.capacity
}

// TotalSamples returns the number of samples accepted since the last clear.
func (r *Ring) TotalSamples() uint64 {
	return r.total
}

// Full reports whether every channel holds capacity bits.
func (r *Ring) Full() bool {
	return r.size == r.capacity
}

// Snapshot copies the contents of one channel, oldest bit first.
// Channel indices are 0-based.
func (r *Ring) Snapshot(channel int) []uint8 {
	out := make([]uint8, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.bits[channel][(r.head+i)%r.capacity]
	}
	return out
}

// SnapshotAll copies every channel at a single observation point, paired
// with the sample counter at that point.
func (r *Ring) SnapshotAll() (total uint64, channels [Channels][]uint8) {
	for ch := 0; ch < Channels; ch++ {
		channels[ch] = r.Snapshot(ch)
	}
	return r.total, channels
}

// Clear drops all contents and resets the sample counter to zero.
func (r *Ring) Clear() {
	r.head = 0
	r.size = 0
	r.total = 0
}
