package mqtt

import (
	"log/slog"

	"github.com/sweeney/hydro-controller/internal/metrics"
)

// keySystem labels lifecycle events in drop metrics.
const keySystem = "system"

// bufferedMsg is a notification held back while the broker is unreachable.
type bufferedMsg struct {
	key      string
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the most recent notifications published while offline.
// When full the oldest entry is evicted. Not safe for concurrent use; the
// publisher's mutex guards it.
type ringBuffer struct {
	slots   []bufferedMsg
	next    int // slot the next push writes
	count   int
	dropped int // evictions since start
	warned  bool
	logger  *slog.Logger
}

func newRingBuffer(capacity int, logger *slog.Logger) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ringBuffer{slots: make([]bufferedMsg, capacity), logger: logger}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.slots)
	if r.count == size {
		// next is also the oldest slot once the ring is full.
		r.evict(r.slots[r.next])
	} else {
		r.count++
	}
	r.slots[r.next] = msg
	r.next = (r.next + 1) % size
}

func (r *ringBuffer) evict(old bufferedMsg) {
	r.dropped++
	metrics.NotificationsTotal.WithLabelValues(old.key, metrics.ResultDropped).Inc()
	if !r.warned {
		r.logger.Warn("offline buffer full, dropping oldest",
			"capacity", len(r.slots), "key", old.key)
		r.warned = true
	}
}

// drain removes and returns every buffered message, oldest first.
func (r *ringBuffer) drain() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	size := len(r.slots)
	oldest := (r.next - r.count + size) % size

	out := make([]bufferedMsg, 0, r.count)
	for i := 0; i < r.count; i++ {
		slot := (oldest + i) % size
		out = append(out, r.slots[slot])
		r.slots[slot] = bufferedMsg{}
	}
	r.count, r.next = 0, 0
	r.warned = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
