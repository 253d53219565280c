// Package maps wraps the external driving-distance provider.
//
// The provider is queried with origin/destination coordinate lists and
// returns per-pair distance in meters and duration in seconds; results
// are converted to miles and minutes rounded to one decimal. Requests
// are partitioned into batches of at most BatchSize×BatchSize pairs and
// paced by a rate limiter so the configured minimum interval between
// batches is preserved. Any batch failure is swallowed — missing pairs
// fall through to the haversine fallback upstream.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dragonseats/optimizer/config"
	"github.com/dragonseats/optimizer/pkg/geo"
)

const metersPerMile = 1609.34

// PairDistance is a single origin→destination provider result.
type PairDistance struct {
	Origin          geo.Coordinate
	Destination     geo.Coordinate
	DistanceMiles   float64
	DurationMinutes float64
}

// Client talks to the distance-matrix provider.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	batchSize  int
}

// NewClient builds a provider client from config. An empty API key
// yields a disabled client whose FetchMatrix returns no results.
func NewClient(cfg config.MapsConfig) *Client {
	delay := cfg.RateLimitDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	batch := cfg.BatchSize
	if batch <= 0 || batch > 25 {
		batch = 25
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		batchSize:  batch,
	}
}

// Enabled reports whether provider fetches are configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// FetchMatrix queries driving distances for all origin×destination
// pairs, batching as needed. Failed batches are skipped silently.
func (c *Client) FetchMatrix(
	ctx context.Context,
	origins []geo.Coordinate,
	destinations []geo.Coordinate,
) ([]PairDistance, error) {
	if !c.Enabled() || len(origins) == 0 || len(destinations) == 0 {
		return nil, nil
	}

	var results []PairDistance

	for oStart := 0; oStart < len(origins); oStart += c.batchSize {
		oBatch := origins[oStart:minInt(oStart+c.batchSize, len(origins))]
		for dStart := 0; dStart < len(destinations); dStart += c.batchSize {
			dBatch := destinations[dStart:minInt(dStart+c.batchSize, len(destinations))]

			if err := c.limiter.Wait(ctx); err != nil {
				return results, err
			}

			batch, err := c.fetchBatch(ctx, oBatch, dBatch)
			if err != nil {
				// Batch failures are non-fatal; the matrix builder
				// fills the gaps with haversine estimates.
				continue
			}
			results = append(results, batch...)
		}
	}

	return results, nil
}

// providerResponse mirrors the distance-matrix JSON payload.
type providerResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (c *Client) fetchBatch(
	ctx context.Context,
	origins []geo.Coordinate,
	destinations []geo.Coordinate,
) ([]PairDistance, error) {
	params := url.Values{}
	params.Set("origins", joinCoords(origins))
	params.Set("destinations", joinCoords(destinations))
	params.Set("units", "imperial")
	params.Set("mode", "driving")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("maps: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("maps: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("maps: unexpected status %d", resp.StatusCode)
	}

	var payload providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("maps: decode response: %w", err)
	}

	var results []PairDistance
	for i, row := range payload.Rows {
		if i >= len(origins) {
			break
		}
		for j, el := range row.Elements {
			if j >= len(destinations) {
				break
			}
			if el.Status != "OK" {
				continue
			}
			results = append(results, PairDistance{
				Origin:          origins[i],
				Destination:     destinations[j],
				DistanceMiles:   round1(el.Distance.Value / metersPerMile),
				DurationMinutes: round1(el.Duration.Value / 60),
			})
		}
	}
	return results, nil
}

func joinCoords(coords []geo.Coordinate) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%f,%f", c.Lat, c.Lng)
	}
	return strings.Join(parts, "|")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
