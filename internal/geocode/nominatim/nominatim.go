// Package nominatim searches OpenStreetMap Nominatim through gominatim.
//
// gominatim keeps its server address in a package variable, so every search
// runs under one process-wide lock that also enforces the upstream rate limit.
package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"

	"github.com/vbonduro/mapnote/internal/geocode"
)

const (
	DefaultServer = "https://nominatim.openstreetmap.org"

	// DefaultMinInterval honours the public instance's one request per
	// second policy.
	DefaultMinInterval = time.Second

	DefaultRetries = 1
	retryBackoff   = 150 * time.Millisecond
	maxLimit       = 50
)

var (
	upstreamMu   sync.Mutex
	upstreamLast time.Time
)

type Client struct {
	server      string
	minInterval time.Duration
	retries     int
	logger      *slog.Logger
}

func NewClient(server string, logger *slog.Logger) *Client {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}
	return &Client{
		server:      strings.TrimRight(server, "/"),
		minInterval: DefaultMinInterval,
		retries:     DefaultRetries,
		logger:      logger,
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]geocode.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > maxLimit {
		limit = 5
	}

	res, err := c.get(ctx, gominatim.SearchQuery{Q: query, Limit: limit})
	if err != nil {
		return nil, err
	}

	places := make([]geocode.Place, 0, len(res))
	for _, r := range res {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			c.logger.Debug("skipping place with unparseable coordinates", "display_name", r.DisplayName)
			continue
		}
		places = append(places, geocode.Place{
			Lat:         lat,
			Lng:         lng,
			DisplayName: r.DisplayName,
			Class:       r.Class,
			Type:        r.Type,
		})
	}

	if len(places) == 0 {
		return nil, geocode.ErrNoResults
	}
	return places, nil
}

func (c *Client) get(ctx context.Context, q gominatim.SearchQuery) ([]gominatim.SearchResult, error) {
	upstreamMu.Lock()
	defer upstreamMu.Unlock()

	gominatim.SetServer(c.server)

	attempts := c.retries + 1
	for attempt := 1; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		res, err := q.Get()
		if err == nil {
			if attempt > 1 {
				c.logger.Info("nominatim recovered", "attempt", attempt, "query", q.Q)
			}
			return res, nil
		}

		if !transient(err) || attempt == attempts {
			return nil, fmt.Errorf("nominatim search failed after %d attempt(s): %w", attempt, err)
		}
		c.logger.Warn("transient nominatim error, retrying", "attempt", attempt, "query", q.Q, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}

// wait blocks until minInterval has passed since the previous upstream call.
// Callers must hold upstreamMu.
func (c *Client) wait(ctx context.Context) error {
	if delta := time.Since(upstreamLast); delta < c.minInterval {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.minInterval - delta):
		}
	}
	upstreamLast = time.Now()
	return ctx.Err()
}

func transient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") || strings.Contains(msg, "EOF")
}
