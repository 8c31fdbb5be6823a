// Package imgw downloads and decodes the IMGW public meteorological warnings
// feed (danepubliczne.imgw.pl).
package imgw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
)

// maxFeedBytes caps the downloaded payload. The real feed is well under 1 MiB.
const maxFeedBytes = 16 << 20

// ErrStatus wraps non-200 feed answers.
var ErrStatus = errors.New("imgw: unexpected status")

// Client fetches the full current advisory list in one request.
type Client struct {
	httpClient *http.Client
	url        string
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// NewClient creates a feed client bounded by timeout. metrics may be nil.
func NewClient(url string, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch downloads and decodes the feed.
func (c *Client) Fetch(ctx context.Context) ([]domain.FeedRecord, error) {
	body, err := c.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// FetchRaw downloads the feed payload without decoding it. Every call is
// recorded in the feed metrics.
func (c *Client) FetchRaw(ctx context.Context) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx)
	c.metrics.ObserveFeedFetch(time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("imgw fetch failed")
		return nil, err
	}
	c.logger.Debug().Int("bytes", len(body)).Dur("took", time.Since(start)).Msg("imgw fetch")
	return body, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imgw request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, body)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
