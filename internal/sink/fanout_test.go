package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adalliance/tracker/internal/visit"
)

type fakeSink struct {
	name       string
	startErr   error
	enqueueErr error
	got        []visit.Event
	closed     bool
}

func (s *fakeSink) Start(ctx context.Context) error { return s.startErr }
func (s *fakeSink) Enqueue(e visit.Event) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.got = append(s.got, e)
	return nil
}
func (s *fakeSink) Close() error { s.closed = true; return nil }
func (s *fakeSink) Name() string { return s.name }

func TestFanout_Emit(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	f := NewFanout([]Sink{a, b}, nil, zerolog.Nop())
	f.Start(context.Background())

	f.Emit(visit.Event{Type: visit.EventVisitCreated, VisitID: "v-1"})

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("events delivered a=%d b=%d, want 1 each", len(a.got), len(b.got))
	}
	if a.got[0].VisitID != "v-1" {
		t.Errorf("VisitID = %q", a.got[0].VisitID)
	}
}

func TestFanout_FailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSink{name: "bad", enqueueErr: errors.New("broken pipe")}
	good := &fakeSink{name: "good"}
	f := NewFanout([]Sink{bad, good}, nil, zerolog.Nop())
	f.Start(context.Background())

	f.Emit(visit.Event{VisitID: "v-1"})

	if len(good.got) != 1 {
		t.Error("healthy sink should still receive the event")
	}
}

func TestFanout_DropsSinkThatFailsToStart(t *testing.T) {
	bad := &fakeSink{name: "bad", startErr: errors.New("no broker")}
	good := &fakeSink{name: "good"}
	f := NewFanout([]Sink{bad, good}, nil, zerolog.Nop())
	f.Start(context.Background())

	f.Emit(visit.Event{VisitID: "v-1"})

	if len(bad.got) != 0 {
		t.Error("failed sink should not receive events")
	}
	if len(good.got) != 1 {
		t.Error("surviving sink should receive events")
	}
}

func TestFanout_Close(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	f := NewFanout([]Sink{a, b}, nil, zerolog.Nop())
	f.Start(context.Background())

	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("all sinks should be closed")
	}
}
