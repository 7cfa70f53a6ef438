package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/adalliance/tracker/internal/metrics"
	"github.com/adalliance/tracker/internal/visit"
)

// Fanout delivers each event to every configured sink. Sink failures are
// counted and logged but do not propagate to the caller.
type Fanout struct {
	sinks []Sink
	m     *metrics.Metrics
	log   zerolog.Logger
}

func NewFanout(sinks []Sink, m *metrics.Metrics, log zerolog.Logger) *Fanout {
	return &Fanout{sinks: sinks, m: m, log: log}
}

// Start brings up every sink. A sink that fails to start is dropped from
// the fanout so the rest keep working.
func (f *Fanout) Start(ctx context.Context) {
	alive := f.sinks[:0]
	for _, s := range f.sinks {
		if err := s.Start(ctx); err != nil {
			f.log.Error().Err(err).Str("sink", s.Name()).Msg("sink failed to start")
			if f.m != nil {
				f.m.IncrementSinkErrors(s.Name(), "start_error")
			}
			continue
		}
		alive = append(alive, s)
	}
	f.sinks = alive
}

// Emit satisfies the visit service's emit callback.
func (f *Fanout) Emit(e visit.Event) {
	for _, s := range f.sinks {
		if err := s.Enqueue(e); err != nil {
			f.log.Error().Err(err).Str("sink", s.Name()).Str("visit_id", e.VisitID).Msg("sink enqueue failed")
			if f.m != nil {
				f.m.IncrementSinkErrors(s.Name(), "enqueue_error")
			}
			continue
		}
		if f.m != nil {
			f.m.IncrementEventsEmitted(s.Name())
		}
	}
}

// Close flushes and closes every sink, returning the first error seen.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			f.log.Error().Err(err).Str("sink", s.Name()).Msg("sink close failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
