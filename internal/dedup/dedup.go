// Package dedup suppresses the second event for one connection when both
// the tcp_connect probe and the inet_sock_set_state tracepoint are attached.
package dedup

import (
	"github.com/your-org/connmon/internal/config"
	"github.com/your-org/connmon/internal/model"
)

// sweepEvery is the number of inserts between sweeps of expired tuples.
const sweepEvery = 1024

// Filter is not safe for concurrent use; the collector owns it.
type Filter struct {
	enabled bool
	window  uint64

	seen    map[model.Tuple]uint64
	newest  uint64
	inserts int
}

func New(cfg config.Dedup) *Filter {
	return &Filter{
		enabled: cfg.Enabled,
		window:  uint64(cfg.Window.Nanoseconds()),
		seen:    map[model.Tuple]uint64{},
	}
}

// Duplicate reports whether a record with the same 4-tuple and protocol
// was let through within the window. Records from different CPUs arrive
// out of order, so the distance is taken in both directions.
func (f *Filter) Duplicate(rec *model.Record) bool {
	if !f.enabled {
		return false
	}

	key := rec.Tuple()
	if last, ok := f.seen[key]; ok && distance(rec.Timestamp, last) <= f.window {
		return true
	}

	f.seen[key] = rec.Timestamp
	if rec.Timestamp > f.newest {
		f.newest = rec.Timestamp
	}
	f.inserts++
	if f.inserts%sweepEvery == 0 {
		f.sweep()
	}
	return false
}

// Len is the number of tuples currently remembered.
func (f *Filter) Len() int {
	return len(f.seen)
}

func (f *Filter) sweep() {
	for key, ts := range f.seen {
		if f.newest > ts && f.newest-ts > f.window {
			delete(f.seen, key)
		}
	}
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
