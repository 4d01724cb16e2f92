package model

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Clock maps bpf_ktime_get_ns values (CLOCK_MONOTONIC) to wall-clock time.
type Clock struct {
	offset int64
}

// NewClock samples both clocks once. Suspend and NTP steps after this call
// are not tracked.
func NewClock() (Clock, error) {
	var mono, wall unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono); err != nil {
		return Clock{}, fmt.Errorf("read monotonic clock: %w", err)
	}
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &wall); err != nil {
		return Clock{}, fmt.Errorf("read realtime clock: %w", err)
	}
	return Clock{offset: wall.Nano() - mono.Nano()}, nil
}

// ClockAt returns a Clock where ktime 0 corresponds to boot.
func ClockAt(boot time.Time) Clock {
	return Clock{offset: boot.UnixNano()}
}

func (c Clock) Time(ktimeNs uint64) time.Time {
	return time.Unix(0, int64(ktimeNs)+c.offset).UTC()
}
