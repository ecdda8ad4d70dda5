package source

import (
	"context"

	"codeberg.org/mutker/devdash/internal/telemetry"
)

// Adapter samples one telemetry domain. Sample returns a snapshot holding
// only the adapter's own fields, or an error carrying one of the failure
// codes in this package.
type Adapter interface {
	Source() telemetry.Source
	Sample(ctx context.Context) (telemetry.Snapshot, error)
}

// Func adapts a plain function to the Adapter interface.
type Func struct {
	Src telemetry.Source
	Fn  func(ctx context.Context) (telemetry.Snapshot, error)
}

func (f Func) Source() telemetry.Source {
	return f.Src
}

func (f Func) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	return f.Fn(ctx)
}
