package mqtt

import (
	"testing"
)

func fill(b *backlog, from, to int) {
	for i := from; i < to; i++ {
		b.push(pending{topic: TopicAttributes, payload: []byte{byte(i)}})
	}
}

func TestBacklogEmptyDrain(t *testing.T) {
	b := newBacklog(4)
	got, dropped := b.drain()
	if got != nil || dropped != 0 {
		t.Errorf("expected nothing from empty drain, got %d items, %d dropped", len(got), dropped)
	}
}

func TestBacklogOrder(t *testing.T) {
	b := newBacklog(10)
	fill(b, 0, 5)

	got, dropped := b.drain()
	if len(got) != 5 || dropped != 0 {
		t.Fatalf("expected 5 items and no drops, got %d, %d", len(got), dropped)
	}
	for i, msg := range got {
		if msg.payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, msg.payload[0])
		}
	}

	if got, _ := b.drain(); got != nil {
		t.Errorf("expected empty second drain, got %d items", len(got))
	}
}

func TestBacklogOverflowKeepsNewest(t *testing.T) {
	b := newBacklog(3)
	fill(b, 0, 7)

	got, dropped := b.drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if dropped != 4 {
		t.Errorf("expected 4 dropped, got %d", dropped)
	}
	for i, msg := range got {
		if want := byte(i + 4); msg.payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestBacklogReuseAfterDrain(t *testing.T) {
	b := newBacklog(4)
	fill(b, 0, 3)
	b.drain()

	fill(b, 10, 14)
	got, _ := b.drain()
	if len(got) != 4 {
		t.Fatalf("expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(10 + i); msg.payload[0] != want {
			t.Errorf("item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestBacklogLen(t *testing.T) {
	b := newBacklog(0)
	if b.len() != 0 {
		t.Errorf("expected len 0, got %d", b.len())
	}

	fill(b, 0, 2)
	if b.len() != 1 {
		t.Errorf("capacity clamps to 1, expected len 1, got %d", b.len())
	}
}
