package weather

import (
	"context"
	"net/http"
	"net/url"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/source"
)

// Position is a point on the globe in decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

func (p Position) valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Locator resolves the device position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// StaticLocator always returns the configured position.
type StaticLocator Position

func (s StaticLocator) Locate(context.Context) (Position, error) {
	p := Position(s)
	if !p.valid() {
		return Position{}, errors.New().WithData(source.ErrInvalidResponse, "static position out of range")
	}
	return p, nil
}

// DisabledLocator stands for a user who declined location access.
type DisabledLocator struct{}

func (DisabledLocator) Locate(context.Context) (Position, error) {
	return Position{}, errors.New().WithMessage(source.ErrPermissionDenied, "location access disabled")
}

// IPLocator estimates the position from the public IP address using an
// ip-api compatible endpoint.
type IPLocator struct {
	client   *http.Client
	endpoint string
}

func NewIPLocator(client *http.Client, endpoint string) *IPLocator {
	return &IPLocator{client: client, endpoint: endpoint}
}

type ipLocation struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (l *IPLocator) Locate(ctx context.Context) (Position, error) {
	var loc ipLocation
	if err := getJSON(ctx, l.client, l.endpoint, url.Values{"fields": {"status,message,lat,lon"}}, &loc); err != nil {
		return Position{}, err
	}

	if loc.Status != "success" {
		return Position{}, errors.New().WithData(source.ErrInvalidResponse, "ip location "+loc.Status+": "+loc.Message)
	}
	if loc.Lat == nil || loc.Lon == nil {
		return Position{}, errors.New().WithData(source.ErrInvalidResponse, "ip location missing coordinates")
	}

	p := Position{Latitude: *loc.Lat, Longitude: *loc.Lon}
	if !p.valid() {
		return Position{}, errors.New().WithData(source.ErrInvalidResponse, "ip location out of range")
	}

	return p, nil
}
