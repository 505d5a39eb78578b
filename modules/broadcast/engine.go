package broadcast

import (
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
)

// Recipient is one fan-out target. Enqueue must not block; it returns false
// when the frame could not be queued.
type Recipient interface {
	Enqueue(frame []byte) bool
}

// Stats are cumulative fan-out counters.
type Stats struct {
	Broadcasts uint64 `json:"broadcasts"`
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"`
}

// Engine fans frames out to recipients without ever waiting on one of them.
// A recipient whose queue is full is reported back to the caller, which is
// expected to disconnect it.
type Engine struct {
	broadcasts atomic.Uint64
	delivered  atomic.Uint64
	dropped    atomic.Uint64
	logger     types.Logger
}

// NewEngine creates a fan-out engine.
func NewEngine(logger types.Logger) *Engine {
	return &Engine{logger: logger}
}

// Deliver queues frame on every recipient except skip (nil skips nobody) and
// returns the recipients that refused it.
func (e *Engine) Deliver(recipients []Recipient, frame []byte, skip Recipient) []Recipient {
	e.broadcasts.Add(1)

	var failed []Recipient
	for _, r := range recipients {
		if skip != nil && r == skip {
			continue
		}
		if r.Enqueue(frame) {
			e.delivered.Add(1)
			continue
		}
		e.dropped.Add(1)
		failed = append(failed, r)
	}

	if len(failed) > 0 {
		e.logger.Warn("Recipients refused frame", "failed", len(failed), "recipients", len(recipients))
	}
	return failed
}

// Send queues frame on a single recipient.
func (e *Engine) Send(r Recipient, frame []byte) bool {
	if r.Enqueue(frame) {
		e.delivered.Add(1)
		return true
	}
	e.dropped.Add(1)
	return false
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Broadcasts: e.broadcasts.Load(),
		Delivered:  e.delivered.Load(),
		Dropped:    e.dropped.Load(),
	}
}
