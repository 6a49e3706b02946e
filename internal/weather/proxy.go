package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	DefaultTileURL = "https://tile.openweathermap.org/map"

	maxZoom      = 19
	maxTileBytes = 1 << 20

	// DefaultMaxCachedTiles bounds the cache between prunes.
	DefaultMaxCachedTiles = 2048
)

type Tile struct {
	ContentType string
	Data        []byte
	FetchedAt   time.Time
}

// Proxy fetches weather tiles and keeps each one for ttl.
type Proxy struct {
	baseURL    string
	apiKey     string
	ttl        time.Duration
	maxEntries int
	client     *http.Client
	cache      cmap.ConcurrentMap[string, *Tile]
	now        func() time.Time
	logger     *slog.Logger
}

func NewProxy(apiKey, baseURL string, ttl time.Duration, logger *slog.Logger) *Proxy {
	if baseURL == "" {
		baseURL = DefaultTileURL
	}
	if ttl <= 0 {
		ttl = DefaultSettings().UpdateInterval
	}
	return &Proxy{
		baseURL:    baseURL,
		apiKey:     apiKey,
		ttl:        ttl,
		maxEntries: DefaultMaxCachedTiles,
		client:     &http.Client{Timeout: 15 * time.Second},
		cache:      cmap.New[*Tile](),
		now:        time.Now,
		logger:     logger,
	}
}

func cacheKey(kind Kind, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d", kind, z, x, y)
}

func validTile(z, x, y int) bool {
	if z < 0 || z > maxZoom {
		return false
	}
	n := 1 << z
	return x >= 0 && x < n && y >= 0 && y < n
}

// Tile returns the overlay tile for kind at z/x/y, from cache while fresh.
func (p *Proxy) Tile(ctx context.Context, kind Kind, z, x, y int) (*Tile, error) {
	if _, ok := layers[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !validTile(z, x, y) {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, z, x, y)
	}

	key := cacheKey(kind, z, x, y)
	if t, ok := p.cache.Get(key); ok && p.now().Sub(t.FetchedAt) < p.ttl {
		return t, nil
	}

	t, err := p.fetch(ctx, kind, z, x, y)
	if err != nil {
		return nil, err
	}
	p.store(key, t)
	return t, nil
}

// store caches t unless the cache is full of fresh tiles, in which case the
// tile is served uncached.
func (p *Proxy) store(key string, t *Tile) {
	if !p.cache.Has(key) && p.cache.Count() >= p.maxEntries {
		p.Prune()
		if p.cache.Count() >= p.maxEntries {
			p.logger.Debug("weather tile cache full, not caching", "key", key, "entries", p.cache.Count())
			return
		}
	}
	p.cache.Set(key, t)
	p.logger.Debug("weather tile cached", "key", key, "bytes", len(t.Data))
}

func (p *Proxy) fetch(ctx context.Context, kind Kind, z, x, y int) (*Tile, error) {
	endpoint := fmt.Sprintf("%s/%s/%d/%d/%d.png?%s",
		p.baseURL, kind.Layer(), z, x, y, url.Values{"appid": {p.apiKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather tile server returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read weather tile: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return &Tile{ContentType: contentType, Data: data, FetchedAt: p.now()}, nil
}

// Prune drops expired tiles and returns how many were removed.
func (p *Proxy) Prune() int {
	removed := 0
	now := p.now()
	for item := range p.cache.IterBuffered() {
		if now.Sub(item.Val.FetchedAt) >= p.ttl {
			p.cache.Remove(item.Key)
			removed++
		}
	}
	return removed
}

// Run prunes the cache every ttl until ctx is cancelled.
func (p *Proxy) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Prune(); n > 0 {
				p.logger.Debug("pruned weather tiles", "removed", n, "remaining", p.cache.Count())
			}
		}
	}
}
