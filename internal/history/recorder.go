package history

import (
	"context"
	"log/slog"
	"time"
)

// sendTimeout bounds one sink delivery so a slow backend cannot stall an
// update cycle.
const sendTimeout = 5 * time.Second

// Recorder fans events out to an in-memory ring and any configured sinks.
// Sink failures are logged and dropped; auditing must never block or fail
// an update.
type Recorder struct {
	ring   *Ring
	sinks  []Sink
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	return NewRecorderSize(logger, 0, sinks...)
}

// NewRecorderSize sets the ring capacity explicitly. ringSize <= 0 falls
// back to DefaultRingSize.
func NewRecorderSize(logger *slog.Logger, ringSize int, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{ring: NewRing(ringSize), sinks: sinks, logger: logger}
}

// Record stamps e when needed and delivers it everywhere.
func (r *Recorder) Record(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	r.ring.Append(e)
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := s.Send(ctx, e); err != nil {
			r.logger.Warn("history sink send failed", "type", e.Type, "error", err)
		}
		cancel()
	}
}

// Recent returns up to n buffered events, newest first.
func (r *Recorder) Recent(n int) []Event { return r.ring.Recent(n) }

// Close closes all sinks, returning the first error seen.
func (r *Recorder) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
