package transport

import "testing"

func TestOrderedBufferInsertSortsBySeq(t *testing.T) {
	b := NewOrderedBuffer()
	b.Insert(5, 0, []byte("e"))
	b.Insert(1, 0, []byte("a"))
	b.Insert(3, 0, []byte("c"))

	entries := b.Entries()
	want := []uint16{1, 3, 5}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
	}
	for i, seq := range want {
		if entries[i].Seq != seq {
			t.Errorf("Entry %d: expected seq %d, got %d", i, seq, entries[i].Seq)
		}
	}
}

func TestOrderedBufferInsertDuplicateIsNoop(t *testing.T) {
	b := NewOrderedBuffer()
	b.Insert(1, 0, []byte("first"))
	b.Insert(1, 0, []byte("second"))

	if b.Len() != 1 {
		t.Fatalf("Expected 1 entry after duplicate insert, got %d", b.Len())
	}
	head, _ := b.Head()
	if string(head.Payload) != "first" {
		t.Errorf("Expected duplicate insert to be ignored, got payload %q", head.Payload)
	}
}

func TestOrderedBufferRemoveBelow(t *testing.T) {
	b := NewOrderedBuffer()
	b.Insert(1, 0, []byte("aa"))
	b.Insert(2, 0, []byte("bbb"))
	b.Insert(3, 0, []byte("c"))

	released := b.RemoveBelow(3)
	if released != 5 {
		t.Errorf("Expected 5 released bytes, got %d", released)
	}
	if b.Len() != 1 {
		t.Fatalf("Expected 1 entry remaining, got %d", b.Len())
	}
	head, _ := b.Head()
	if head.Seq != 3 {
		t.Errorf("Expected remaining entry seq 3, got %d", head.Seq)
	}
}

func TestOrderedBufferDrainContiguousStopsAtGap(t *testing.T) {
	b := NewOrderedBuffer()
	b.Insert(1, 0, []byte("a"))
	b.Insert(2, 0, []byte("b"))
	b.Insert(4, 0, []byte("d"))

	var delivered []byte
	next := b.DrainContiguous(1, func(p []byte) { delivered = append(delivered, p...) })

	if next != 3 {
		t.Errorf("Expected next seq 3 after gap at 3, got %d", next)
	}
	if string(delivered) != "ab" {
		t.Errorf("Expected delivered %q, got %q", "ab", delivered)
	}
	if b.Len() != 1 {
		t.Errorf("Expected 1 entry left buffered (seq 4), got %d", b.Len())
	}
}

func TestOrderedBufferIsEmpty(t *testing.T) {
	b := NewOrderedBuffer()
	if !b.IsEmpty() {
		t.Error("Expected fresh buffer to be empty")
	}
	b.Insert(1, 0, []byte("x"))
	if b.IsEmpty() {
		t.Error("Expected buffer with an entry to not be empty")
	}
}
