// Package geoportal resolves WGS84 points to counties through the Geoportal
// PRG ArcGIS MapServer query endpoint.
package geoportal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
)

// Client implements the services geocoder against Geoportal.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates a Geoportal client. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Lookup returns the county containing (lat, lon), or nil when the point is
// outside every county. Transport failures and non-200 answers are errors.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (*domain.RegionMatch, error) {
	start := time.Now()
	match, err := c.lookup(ctx, lat, lon)

	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case match == nil:
		outcome = "empty"
	}
	c.metrics.Geocoder(time.Since(start).Seconds(), outcome)
	c.logger.Debug().
		Float64("lat", lat).Float64("lon", lon).
		Str("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("geoportal lookup")
	return match, err
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (*domain.RegionMatch, error) {
	// ArcGIS geometry is x=lon, y=lat.
	geom := fmt.Sprintf(`{"x":%s,"y":%s}`,
		strconv.FormatFloat(lon, 'f', -1, 64),
		strconv.FormatFloat(lat, 'f', -1, 64))
	params := url.Values{
		"f":              {"pjson"},
		"geometry":       {geom},
		"geometryType":   {"esriGeometryPoint"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"teryt,nazwa"},
		"returnGeometry": {"false"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoportal request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geoportal API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// ArcGIS reports query faults with HTTP 200 and an error object.
	if out.Error != nil {
		return nil, fmt.Errorf("geoportal API error: code %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Features) == 0 {
		return nil, nil
	}

	a := out.Features[0].Attributes
	code := countyCode(string(a.Teryt))
	if code == "" {
		c.logger.Warn().Str("teryt", string(a.Teryt)).Msg("geoportal returned malformed teryt")
		return nil, nil
	}
	return &domain.RegionMatch{Code: code, Name: strings.TrimSpace(a.Nazwa)}, nil
}

// countyCode reduces a TERYT identifier to its 4-digit county prefix.
// Anything not starting with 4 digits yields "".
func countyCode(teryt string) string {
	teryt = strings.TrimSpace(teryt)
	if len(teryt) < 4 {
		return ""
	}
	if code := teryt[:4]; domain.ValidRegionCode(code) {
		return code
	}
	return ""
}

// ArcGIS response types.

type response struct {
	Features []feature `json:"features"`
	Error    *apiError `json:"error"`
}

type feature struct {
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	Teryt looseString `json:"teryt"`
	Nazwa string      `json:"nazwa"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}
