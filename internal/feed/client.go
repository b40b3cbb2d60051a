// Package feed talks to the remote AIMS-style web service: it fetches the
// channel catalog and downloads per-chunk data archives.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// Client is the shared feed HTTP client. Catalog fetches and chunk
// downloads run through one circuit breaker, so a struggling remote service
// is backed off as a whole rather than hammered channel by channel.
type Client struct {
	baseURL    string
	categoryID int
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a feed client from config.
func NewClient(cfg types.FeedConfig, logger *slog.Logger) (*Client, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("feed.timeout: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		categoryID: cfg.CategoryID,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "feed",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("feed breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// get performs one GET through the circuit breaker and returns the body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}
