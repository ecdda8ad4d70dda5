package weather

import (
	"net/http"

	"codeberg.org/mutker/devdash/internal/config"
)

// FromConfig builds the weather adapter described by cfg.
func FromConfig(cfg config.WeatherConfig) *Adapter {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var locator Locator
	switch cfg.Locate {
	case config.LocateStatic:
		locator = StaticLocator{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
	case config.LocateIP:
		locator = NewIPLocator(httpClient, cfg.IPLocationURL)
	default:
		locator = DisabledLocator{}
	}

	return NewAdapter(locator, NewClient(httpClient, cfg.ForecastURL, cfg.GeocodeURL))
}
