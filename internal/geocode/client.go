// Package geocode wraps the external reverse-geocoding service. The service
// is best effort: responses may be missing address components and the call
// is bounded by a deadline. Callers must treat any error as "insufficient
// location information", never as a fatal condition.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrUnavailable = errors.New("reverse geocoding unavailable")

// Address is the normalized shape of a reverse-geocoding response. Any
// field may be empty.
type Address struct {
	Country     string
	CountryCode string
	Region      string
	City        string
}

type Client struct {
	baseURL    string
	zoom       int
	httpClient *http.Client
}

// NewClient builds a client for a Nominatim-style /reverse endpoint.
// Every lookup is cut off at the given timeout.
func NewClient(baseURL string, zoom int, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		zoom:       zoom,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Zoom returns the precision level lookups are performed at.
func (c *Client) Zoom() int {
	return c.zoom
}

type reverseResponse struct {
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		County      string `json:"county"`
		Region      string `json:"region"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

// Reverse resolves a coordinate to address components. A missing country in
// the response counts as a failed lookup.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	const op = "geocode.Reverse"

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(c.zoom))
	q.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("%s: %w: status %d", op, ErrUnavailable, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Address{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	addr := Address{
		Country:     body.Address.Country,
		CountryCode: body.Address.CountryCode,
		Region:      firstNonEmpty(body.Address.State, body.Address.County, body.Address.Region),
		City:        firstNonEmpty(body.Address.City, body.Address.Town, body.Address.Village),
	}
	if addr.Country == "" {
		return Address{}, fmt.Errorf("%s: %w: no country in response", op, ErrUnavailable)
	}

	return addr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
