// Package sink fans visit events out to downstream consumers. Each sink
// runs independently; a failing sink never blocks visit handling.
package sink

import (
	"context"

	"github.com/adalliance/tracker/internal/visit"
)

type Sink interface {
	Start(ctx context.Context) error
	Enqueue(e visit.Event) error
	Close() error
	Name() string // Returns the sink name for metrics and logging
}
