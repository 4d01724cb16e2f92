package capture

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/atomic"

	"github.com/your-org/connmon/internal/model"
)

// ErrClosed is returned by Read once the channel is closed and drained.
var ErrClosed = fmt.Errorf("event channel: %w", os.ErrClosed)

const defaultPollInterval = time.Millisecond

// Channel is a fixed-capacity ring of encoded records with many producers
// and a single consumer. No locks are taken: each slot carries a sequence
// number. A producer claims position p by moving head from p to p+1 while
// slot p%size still has sequence p, writes the record and publishes it by
// storing p+1. The consumer takes slot t%size once its sequence is t+1 and
// hands it back by storing t+size. A producer that finds the slot still
// occupied drops the record and counts it as lost.
type Channel struct {
	slots []slot
	size  uint64

	head   atomic.Uint64
	tail   atomic.Uint64
	lost   atomic.Uint64
	closed atomic.Bool

	// consumer-side state
	buf          [model.RecordSize]byte
	reported     uint64
	pollInterval time.Duration
}

type slot struct {
	seq  atomic.Uint64
	data [model.RecordSize]byte
}

func NewChannel(capacity int) (*Channel, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("channel capacity must be positive, got %d", capacity)
	}
	c := &Channel{
		slots:        make([]slot, capacity),
		size:         uint64(capacity),
		pollInterval: defaultPollInterval,
	}
	for i := range c.slots {
		c.slots[i].seq.Store(uint64(i))
	}
	return c, nil
}

// Submit encodes rec into the next free slot. It never blocks or allocates
// and returns false when the channel is full.
func (c *Channel) Submit(rec model.Record) bool {
	pos := c.head.Load()
	for {
		s := &c.slots[pos%c.size]
		seq := s.seq.Load()
		switch diff := int64(seq - pos); {
		case diff == 0:
			if c.head.CompareAndSwap(pos, pos+1) {
				rec.MarshalTo(&s.data)
				s.seq.Store(pos + 1)
				return true
			}
			pos = c.head.Load()
		case diff < 0:
			c.lost.Inc()
			return false
		default:
			// another producer took pos
			pos = c.head.Load()
		}
	}
}

// Poll copies the oldest published record into buf and reports whether
// there was one. Only one goroutine may consume from a Channel.
func (c *Channel) Poll(buf *[model.RecordSize]byte) bool {
	pos := c.tail.Load()
	s := &c.slots[pos%c.size]
	if s.seq.Load() != pos+1 {
		return false
	}
	*buf = s.data
	s.seq.Store(pos + c.size)
	c.tail.Store(pos + 1)
	return true
}

// Read waits for the next sample. Drops are reported before records, as
// a Sample with only Lost set. Raw aliases an internal buffer that is
// reused by the next Read. After Close, Read keeps returning records
// until every claimed slot has been published and consumed, then returns
// ErrClosed.
func (c *Channel) Read() (model.Sample, error) {
	for {
		closed := c.closed.Load()

		if lost := c.lost.Load(); lost != c.reported {
			delta := lost - c.reported
			c.reported = lost
			return model.Sample{Lost: delta}, nil
		}
		if c.Poll(&c.buf) {
			return model.Sample{Raw: c.buf[:]}, nil
		}
		// a producer may have claimed a slot before Close and not published it yet
		if closed && c.tail.Load() == c.head.Load() {
			return model.Sample{}, ErrClosed
		}
		time.Sleep(c.pollInterval)
	}
}

// Close stops Read once the remaining records are drained. Producers are
// not affected.
func (c *Channel) Close() error {
	c.closed.Store(true)
	return nil
}

// Len is the number of records waiting for the consumer.
func (c *Channel) Len() int {
	tail := c.tail.Load()
	return int(c.head.Load() - tail)
}

func (c *Channel) Cap() int {
	return int(c.size)
}

// Lost is the total number of records dropped because the channel was full.
func (c *Channel) Lost() uint64 {
	return c.lost.Load()
}
