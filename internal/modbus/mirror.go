package modbus

import (
	"context"
	"log"
	"time"
)

// DefaultRetry is the wait between register writes while the PLC is failing.
const DefaultRetry = time.Second

// Mirror owns a StatusWriter on its own goroutine. The main loop offers
// snapshots without waiting; Run writes the newest one and, after a failure,
// retries no more than once per retry interval.
type Mirror struct {
	w     *StatusWriter
	retry time.Duration
	after func(time.Duration) <-chan time.Time

	latest chan Snapshot

	// main loop only
	offered bool
	last    Snapshot
}

// NewMirror wraps w. A non-positive retry selects DefaultRetry.
func NewMirror(w *StatusWriter, retry time.Duration) *Mirror {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Mirror{
		w:      w,
		retry:  retry,
		after:  time.After,
		latest: make(chan Snapshot, 1),
	}
}

// Offer hands s to the writer goroutine. Repeats of the last offer are
// ignored; an unsent older snapshot is replaced.
func (m *Mirror) Offer(s Snapshot) {
	if m.offered && s == m.last {
		return
	}
	m.offered = true
	m.last = s
	for {
		select {
		case m.latest <- s:
			return
		default:
		}
		select {
		case <-m.latest:
		default:
		}
	}
}

// Run writes offered snapshots until ctx ends. Failures are logged once per
// outage.
func (m *Mirror) Run(ctx context.Context) {
	var (
		pending Snapshot
		have    bool
		failing bool
		backoff <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case pending = <-m.latest:
			have = true
			if backoff != nil {
				continue
			}
		case <-backoff:
			backoff = nil
		}
		if !have {
			continue
		}

		err := m.w.WriteStatus(pending)
		switch {
		case err != nil:
			if !failing {
				log.Printf("modbus: status write failed: %v (retrying every %v)", err, m.retry)
				failing = true
			}
			backoff = m.after(m.retry)
		case failing:
			log.Printf("modbus: status writes restored")
			failing = false
			have = false
		default:
			have = false
		}
	}
}
