package transport

// BufferEntry owns one packet's sequence number and payload. The send
// buffer owns entries awaiting acknowledgement; the receive buffer owns
// entries awaiting in-order delivery. There is no aliasing between the two
// buffers — each entry's payload is its own backing array.
type BufferEntry struct {
	Seq     uint16
	Flags   uint16
	Payload []byte
}

// OrderedBuffer is a sequence-ordered, duplicate-free collection of
// BufferEntry, value-owning (a slice of entries, not a linked list of
// pointers into other storage). It backs both the send buffer (unacked
// packets) and the receive buffer (out-of-order reassembly).
//
// insert and lookup are O(n) in the buffer depth; this is acceptable
// because the buffer depth is bounded by the advertised window divided by
// the minimum payload size (spec.md §4.2).
type OrderedBuffer struct {
	entries []BufferEntry
}

// NewOrderedBuffer returns an empty buffer.
func NewOrderedBuffer() *OrderedBuffer {
	return &OrderedBuffer{}
}

// Insert places payload at its sorted position by seq, tagged with flags
// (meaningful on the send buffer, where a retransmission must reuse the
// original packet's flag bits; ignored by receive-side callers, which
// pass 0). A second insert at an already-present seq is a no-op
// (idempotent against duplicates).
func (b *OrderedBuffer) Insert(seq, flags uint16, payload []byte) {
	i := 0
	for i < len(b.entries) && b.entries[i].Seq < seq {
		i++
	}
	if i < len(b.entries) && b.entries[i].Seq == seq {
		return
	}
	b.entries = append(b.entries, BufferEntry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = BufferEntry{Seq: seq, Flags: flags, Payload: payload}
}

// RemoveBelow drops every entry with Seq < threshold and returns the sum
// of their payload lengths. Used by the sender on a new cumulative ACK.
func (b *OrderedBuffer) RemoveBelow(threshold uint16) int {
	i := 0
	released := 0
	for i < len(b.entries) && b.entries[i].Seq < threshold {
		released += len(b.entries[i].Payload)
		i++
	}
	b.entries = b.entries[i:]
	return released
}

// DrainContiguous removes and delivers entries starting at fromSeq as long
// as the head's Seq matches, advancing fromSeq by one per delivered entry.
// It returns the updated fromSeq (the next sequence not yet delivered).
func (b *OrderedBuffer) DrainContiguous(fromSeq uint16, sink func([]byte)) uint16 {
	for len(b.entries) > 0 && b.entries[0].Seq == fromSeq {
		payload := b.entries[0].Payload
		b.entries = b.entries[1:]
		sink(payload)
		fromSeq++
	}
	return fromSeq
}

// Head returns the lowest-sequence entry, if any.
func (b *OrderedBuffer) Head() (BufferEntry, bool) {
	if len(b.entries) == 0 {
		return BufferEntry{}, false
	}
	return b.entries[0], true
}

// IsEmpty reports whether the buffer holds no entries.
func (b *OrderedBuffer) IsEmpty() bool {
	return len(b.entries) == 0
}

// Len returns the number of entries currently buffered.
func (b *OrderedBuffer) Len() int {
	return len(b.entries)
}

// Entries returns the buffer's entries in ascending sequence order. The
// returned slice is a read-only view and must not be mutated.
func (b *OrderedBuffer) Entries() []BufferEntry {
	return b.entries
}
