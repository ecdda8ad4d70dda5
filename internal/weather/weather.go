// Package weather implements the compound weather source: locate the
// device, then reverse-geocode and fetch the forecast concurrently.
package weather

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Adapter is the weather source. A permission denial from the locator is
// remembered and returned without calling the locator again.
type Adapter struct {
	locator Locator
	client  *Client
	now     func() time.Time

	mu     sync.Mutex
	denied error
}

func NewAdapter(locator Locator, client *Client) *Adapter {
	return &Adapter{locator: locator, client: client, now: time.Now}
}

func (*Adapter) Source() telemetry.Source {
	return telemetry.SourceWeather
}

func (a *Adapter) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	if err := a.deniedErr(); err != nil {
		return telemetry.Snapshot{}, err
	}

	pos, err := a.locator.Locate(ctx)
	if err != nil {
		if errors.HasCode(err, source.ErrPermissionDenied) {
			a.mu.Lock()
			a.denied = err
			a.mu.Unlock()
		}
		return telemetry.Snapshot{}, err
	}

	var (
		current Current
		place   Place
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = a.client.Current(gctx, pos)
		return err
	})
	g.Go(func() error {
		var err error
		place, err = a.client.Reverse(gctx, pos)
		return err
	})
	if err := g.Wait(); err != nil {
		return telemetry.Snapshot{}, err
	}

	now := a.now()

	return telemetry.Snapshot{
		TakenAt: now,
		Weather: telemetry.Present(telemetry.Weather{
			TemperatureC: current.TemperatureC,
			Code:         current.Code,
			Description:  Describe(current.Code),
			Locality:     place.Locality(),
			UpdatedAt:    now,
		}),
	}, nil
}

// ResetPermission forgets a remembered denial, e.g. after the user enabled
// location access again.
func (a *Adapter) ResetPermission() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denied = nil
}

func (a *Adapter) deniedErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.denied
}
