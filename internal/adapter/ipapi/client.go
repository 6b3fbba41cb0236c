// Package ipapi resolves a coarse position from the caller's public IP using
// the ip-api.com JSON endpoint.
package ipapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// coarseAccuracy is the nominal radius of an IP fix in meters.
const coarseAccuracy = 5000

// Client implements domain.LocationPlatform. The free tier allows a fixed
// number of requests per minute; Client waits for a token instead of
// tripping the remote limit.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock
	logger     *zap.Logger

	mu   sync.Mutex
	last *domain.Position
}

// NewClient creates a Client for baseURL allowing perMinute lookups.
func NewClient(baseURL string, perMinute int, clock clockwork.Clock, logger *zap.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if perMinute <= 0 {
		perMinute = 45
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		clock:      clock,
		logger:     logger,
	}
}

// CurrentPosition returns the cached fix when it is within opts.MaximumAge,
// otherwise looks the position up. The deadline of ctx bounds both the rate
// limiter wait and the request.
func (c *Client) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Position, error) {
	if pos, ok := c.cached(opts.MaximumAge); ok {
		return pos, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Position{}, &domain.PositionError{Code: domain.PositionTimeout, Message: "ip geolocation rate limited: " + err.Error()}
	}

	pos, err := c.lookup(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return domain.Position{}, &domain.PositionError{Code: domain.PositionTimeout, Message: err.Error()}
		}
		var pe *domain.PositionError
		if errors.As(err, &pe) {
			return domain.Position{}, pe
		}
		return domain.Position{}, &domain.PositionError{Code: domain.PositionUnavailable, Message: err.Error()}
	}

	c.mu.Lock()
	c.last = &pos
	c.mu.Unlock()
	return pos, nil
}

func (c *Client) cached(maxAge time.Duration) (domain.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil || c.clock.Since(c.last.Timestamp) > maxAge {
		return domain.Position{}, false
	}
	return *c.last, true
}

type response struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Query   string  `json:"query"`
}

func (c *Client) lookup(ctx context.Context) (domain.Position, error) {
	u := c.baseURL + "?" + url.Values{"fields": {"status,message,lat,lon,city,query"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Position{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Position{}, fmt.Errorf("ip geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Position{}, fmt.Errorf("ip-api error: status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Position{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return domain.Position{}, &domain.PositionError{Code: domain.PositionUnavailable, Message: "ip geolocation failed: " + body.Message}
	}

	c.logger.Debug("ip geolocation resolved", zap.String("city", body.City))
	return domain.Position{
		Coordinate: domain.Coordinate{Lat: body.Lat, Lng: body.Lon},
		Accuracy:   coarseAccuracy,
		Timestamp:  c.clock.Now(),
	}, nil
}
