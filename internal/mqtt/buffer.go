package mqtt

// pending is a message held back while the broker is unreachable.
type pending struct {
	topic   string
	payload []byte
}

// backlog is a fixed-capacity FIFO. When full the oldest message is
// overwritten, since only the most recent snapshots matter.
// Not safe for concurrent use; the client guards it with its mutex.
type backlog struct {
	slots   []pending
	head    int // next write position
	count   int
	dropped int // overwritten since the last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{slots: make([]pending, capacity)}
}

func (b *backlog) push(msg pending) {
	b.slots[b.head] = msg
	b.head = (b.head + 1) % len(b.slots)
	if b.count == len(b.slots) {
		b.dropped++
		return
	}
	b.count++
}

// drain returns held messages oldest first and how many were lost to overflow.
func (b *backlog) drain() ([]pending, int) {
	if b.count == 0 {
		return nil, 0
	}

	out := make([]pending, b.count)
	start := (b.head - b.count + len(b.slots)) % len(b.slots)
	for i := range out {
		out[i] = b.slots[(start+i)%len(b.slots)]
	}

	dropped := b.dropped
	b.count, b.head, b.dropped = 0, 0, 0
	clear(b.slots)
	return out, dropped
}

func (b *backlog) len() int {
	return b.count
}
