// Package geo resolves coordinates to human-readable addresses and computes
// routes between two points. It talks to a Nominatim-compatible reverse
// geocoder and an OSRM-compatible routing service; when the provider is
// unreachable both operations degrade to coordinate-based fallbacks so
// emergency flows never fail on a third-party outage.
package geo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	earthRadiusMeters = 6371000

	// Assumed average driving speed used to estimate duration when the
	// routing provider is unavailable.
	fallbackSpeedMetersPerSec = 11.1 // ~40 km/h
)

// Client calls the geocoding and routing provider.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient builds a Client for the given provider base URL. An empty baseURL
// yields a client that always uses the fallbacks.
func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: c, apiKey: apiKey}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode resolves a coordinate pair to a display address. When the
// provider is unconfigured or fails, the raw coordinates are returned so the
// caller always has something to show.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	fallback := fmt.Sprintf("%.6f, %.6f", lat, lng)

	if c.http.BaseURL == "" {
		return fallback, nil
	}

	var out reverseResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    fmt.Sprintf("%f", lat),
			"lon":    fmt.Sprintf("%f", lng),
			"format": "json",
			"key":    c.apiKey,
		}).
		SetResult(&out).
		Get("/reverse")
	if err != nil || resp.IsError() || out.DisplayName == "" {
		return fallback, nil
	}

	return out.DisplayName, nil
}

// Route describes a path between two points.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	// Fallback is true when the routing provider was unavailable and the
	// distance is the straight-line estimate.
	Fallback bool `json:"fallback"`
}

type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// GetRoute computes a route from one coordinate pair to another. On provider
// failure it falls back to the haversine straight-line distance with an
// estimated duration.
func (c *Client) GetRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*Route, error) {
	if c.http.BaseURL != "" {
		var out osrmResponse
		coords := fmt.Sprintf("%f,%f;%f,%f", fromLng, fromLat, toLng, toLat)
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("key", c.apiKey).
			SetResult(&out).
			Get("/route/v1/driving/" + coords)
		if err == nil && !resp.IsError() && len(out.Routes) > 0 {
			return &Route{
				DistanceMeters:  out.Routes[0].Distance,
				DurationSeconds: out.Routes[0].Duration,
			}, nil
		}
	}

	distance := Haversine(fromLat, fromLng, toLat, toLng)
	return &Route{
		DistanceMeters:  distance,
		DurationSeconds: distance / fallbackSpeedMetersPerSec,
		Fallback:        true,
	}, nil
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
