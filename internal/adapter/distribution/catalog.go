// Package distribution reads the claimable targets published by the NFT
// distribution service.
package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// Catalog implements domain.TargetSource over the distribution HTTP endpoint.
type Catalog struct {
	url        string
	httpClient *http.Client
	geocoder   domain.Geocoder
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu    sync.Mutex
	cache *expirable.LRU[string, []domain.ClaimTarget]
}

// NewCatalog creates a Catalog that caches the target list for ttl. geocoder
// is optional; when set, targets carry a place name.
func NewCatalog(url string, ttl time.Duration, geocoder domain.Geocoder, logger *zap.Logger, metrics *observability.Metrics) *Catalog {
	return &Catalog{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		geocoder:   geocoder,
		logger:     logger,
		metrics:    metrics,
		cache:      expirable.NewLRU[string, []domain.ClaimTarget](1, nil, ttl),
	}
}

// Targets returns every claimable target with a valid location.
func (c *Catalog) Targets(ctx context.Context) ([]domain.ClaimTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if targets, ok := c.cache.Get(c.url); ok {
		c.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return targets, nil
	}
	c.metrics.CatalogCache.WithLabelValues("miss").Inc()

	targets, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.annotate(ctx, targets)
	c.cache.Add(c.url, targets)
	return targets, nil
}

// Target looks a single target up by token id.
func (c *Catalog) Target(ctx context.Context, tokenID string) (domain.ClaimTarget, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return domain.ClaimTarget{}, err
	}
	for _, t := range targets {
		if t.TokenID == tokenID {
			return t, nil
		}
	}
	return domain.ClaimTarget{}, fmt.Errorf("token %s: %w", tokenID, domain.ErrTargetNotFound)
}

type catalogResponse struct {
	Targets []wireTarget `json:"targets"`
}

type wireTarget struct {
	TokenID  string `json:"tokenId"`
	Location string `json:"location"`
	Rarity   int    `json:"rarity"`
}

func (c *Catalog) fetch(ctx context.Context) ([]domain.ClaimTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch targets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("distribution API error: status %d: %s", resp.StatusCode, body)
	}

	return ParseCatalog(resp.Body, c.logger)
}

// ParseCatalog decodes a catalog document. Entries without a token id or
// with a malformed location are logged and skipped.
func ParseCatalog(r io.Reader, logger *zap.Logger) ([]domain.ClaimTarget, error) {
	var body catalogResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}

	targets := make([]domain.ClaimTarget, 0, len(body.Targets))
	for _, w := range body.Targets {
		if w.TokenID == "" {
			logger.Warn("skipping target without token id", zap.String("location", w.Location))
			continue
		}
		loc, err := domain.ParseCoordinate(w.Location)
		if err != nil {
			logger.Warn("skipping target with malformed location",
				zap.String("token_id", w.TokenID),
				zap.String("location", w.Location),
				zap.Error(err),
			)
			continue
		}
		targets = append(targets, domain.ClaimTarget{
			TokenID:  w.TokenID,
			Location: loc,
			Rarity:   domain.Rarity(w.Rarity),
		})
	}
	return targets, nil
}

// WriteCatalog encodes targets in the document format ParseCatalog reads.
func WriteCatalog(w io.Writer, targets []domain.ClaimTarget) error {
	body := catalogResponse{Targets: make([]wireTarget, 0, len(targets))}
	for _, t := range targets {
		body.Targets = append(body.Targets, wireTarget{
			TokenID:  t.TokenID,
			Location: t.Location.String(),
			Rarity:   int(t.Rarity),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

func (c *Catalog) annotate(ctx context.Context, targets []domain.ClaimTarget) {
	if c.geocoder == nil {
		return
	}
	for i := range targets {
		res, err := c.geocoder.ReverseGeocode(ctx, targets[i].Location)
		if err != nil {
			continue
		}
		targets[i].PlaceName = res.PlaceName
	}
}
