package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/cache"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/util"
	"github.com/ppiankov/provenance-radar/internal/worker"
)

// errDisallowed is returned when robots.txt forbids the search path
var errDisallowed = errors.New("disallowed by robots.txt")

// PlaceStore is the persistent geocode cache
type PlaceStore interface {
	GetPlace(ctx context.Context, place string) (*model.PlaceInfo, error)
	PutPlace(ctx context.Context, place string, lat, lon *float64) error
}

// searchResult is one Nominatim search hit; coordinates arrive as strings
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client resolves place names to coordinates. Lookups go through the
// in-process cache, then the store, then the remote service.
type Client struct {
	enabled    bool
	searchURL  string
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *util.RobotsChecker // nil when robots.txt is not consulted
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.PlaceCache // optional
	store      PlaceStore        // optional
	logger     *zap.Logger
}

// New creates a geocoding client from configuration
func New(config model.GeocodeConfig, proxy model.ProxyConfig, placeCache *cache.PlaceCache, store PlaceStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "provenance-radar/1.0"
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: util.NewTransport(proxy.HTTPProxy, proxy.HTTPSProxy, proxy.NoProxy),
	}

	c := &Client{
		enabled:    config.Enabled && config.BaseURL != "",
		searchURL:  strings.TrimSuffix(config.BaseURL, "/") + "/search",
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    worker.NewLimiter(config.RequestsPerSec, 1),
		breaker:    util.NewBreaker(util.DefaultBreakerConfig("geocode"), logger),
		cache:      placeCache,
		store:      store,
		logger:     logger,
	}
	if config.RespectRobots {
		c.robots = util.NewRobotsChecker(userAgent, timeout, httpClient)
	}
	return c
}

// Lookup returns coordinates for place, or nil coordinates when the place is
// unknown or any lookup step fails. It never returns an error.
func (c *Client) Lookup(ctx context.Context, place string) (lat, lon *float64) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, nil
	}

	if c.cache != nil {
		if lat, lon, found := c.cache.Get(place); found {
			return lat, lon
		}
	}

	// Stored misses are not trusted: the place is searched again
	if c.store != nil {
		info, err := c.store.GetPlace(ctx, place)
		if err == nil && info.Lat != nil && info.Lon != nil {
			c.remember(place, info.Lat, info.Lon)
			return info.Lat, info.Lon
		}
	}

	if !c.enabled {
		return nil, nil
	}

	lat, lon, err := c.search(ctx, place)
	if err != nil {
		c.logger.Debug("geocode lookup failed", zap.String("place", place), zap.Error(err))
		return nil, nil
	}

	c.remember(place, lat, lon)
	if c.store != nil {
		if err := c.store.PutPlace(ctx, place, lat, lon); err != nil {
			c.logger.Warn("caching geocode result failed", zap.String("place", place), zap.Error(err))
		}
	}
	return lat, lon
}

func (c *Client) remember(place string, lat, lon *float64) {
	if c.cache != nil {
		c.cache.Put(place, lat, lon)
	}
}

// search queries the remote service. A response with no hits is a miss
// (nil coordinates, nil error); transport and server failures are errors.
func (c *Client) search(ctx context.Context, place string) (*float64, *float64, error) {
	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	params.Set("limit", "1")
	reqURL := c.searchURL + "?" + params.Encode()

	if c.robots != nil {
		allowed, delay, _ := c.robots.CanFetch(ctx, reqURL)
		if !allowed {
			return nil, nil, errDisallowed
		}
		if delay > 0 {
			if u, err := url.Parse(reqURL); err == nil {
				c.limiter.SlowDown(strings.ToLower(u.Host), delay)
			}
		}
	}

	if err := c.limiter.Wait(ctx, reqURL); err != nil {
		return nil, nil, fmt.Errorf("rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		return nil, nil, err
	}

	hits := result.([]searchResult)
	if len(hits) == 0 {
		return nil, nil, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parse lat %q: %w", hits[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parse lon %q: %w", hits[0].Lon, err)
	}
	return &lat, &lon, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]searchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("geocode service returned HTTP %d", resp.StatusCode)
	}

	var hits []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return hits, nil
}
