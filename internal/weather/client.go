package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/source"
)

const maxErrorBody = 512

// Current is the present weather at one position.
type Current struct {
	TemperatureC float64
	Code         int
}

// Place is a reverse-geocoded position.
type Place struct {
	City     string
	District string
	Region   string
}

// Locality picks the most specific non-empty name.
func (p Place) Locality() string {
	for _, name := range []string{p.City, p.District, p.Region} {
		if s := strings.TrimSpace(name); s != "" {
			return s
		}
	}
	return UnknownLocality
}

// UnknownLocality is shown when geocoding returned no usable name.
const UnknownLocality = "Unknown location"

// Client talks to the forecast and reverse geocoding endpoints.
type Client struct {
	http        *http.Client
	forecastURL string
	geocodeURL  string
}

func NewClient(client *http.Client, forecastURL, geocodeURL string) *Client {
	return &Client{http: client, forecastURL: forecastURL, geocodeURL: geocodeURL}
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current_weather"`
}

// Current fetches the current temperature and weather code.
func (c *Client) Current(ctx context.Context, p Position) (Current, error) {
	var resp forecastResponse
	query := url.Values{
		"latitude":        {formatCoord(p.Latitude)},
		"longitude":       {formatCoord(p.Longitude)},
		"current_weather": {"true"},
	}
	if err := getJSON(ctx, c.http, c.forecastURL, query, &resp); err != nil {
		return Current{}, err
	}

	cw := resp.CurrentWeather
	if cw == nil || cw.Temperature == nil || cw.WeatherCode == nil {
		return Current{}, errors.New().WithData(source.ErrInvalidResponse, "forecast missing current_weather fields")
	}

	return Current{TemperatureC: *cw.Temperature, Code: *cw.WeatherCode}, nil
}

type geocodeResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}

// Reverse resolves a position to a place name.
func (c *Client) Reverse(ctx context.Context, p Position) (Place, error) {
	var resp geocodeResponse
	query := url.Values{
		"latitude":         {formatCoord(p.Latitude)},
		"longitude":        {formatCoord(p.Longitude)},
		"localityLanguage": {"en"},
	}
	if err := getJSON(ctx, c.http, c.geocodeURL, query, &resp); err != nil {
		return Place{}, err
	}

	return Place{City: resp.City, District: resp.Locality, Region: resp.PrincipalSubdivision}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// getJSON issues a GET with query appended to endpoint and decodes the JSON
// body into dst. Transport failures are transient, anything the server
// sends that cannot be used is an invalid response.
func getJSON(ctx context.Context, client *http.Client, endpoint string, query url.Values, dst any) error {
	errFactory := errors.New()

	u, err := url.Parse(endpoint)
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errFactory.Wrap(source.ErrTransientIO, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errFactory.Wrap(source.ErrTransientIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		code := source.ErrInvalidResponse
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			code = source.ErrTransientIO
		}
		return errFactory.WithData(code, fmt.Sprintf("HTTP %s from %s: %s", resp.Status, u.Host, strings.TrimSpace(string(b))))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return errFactory.Wrap(source.ErrInvalidResponse, err)
	}

	return nil
}
