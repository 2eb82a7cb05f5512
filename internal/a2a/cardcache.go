package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/haasonsaas/agentmesh/internal/backoff"
	"github.com/haasonsaas/agentmesh/internal/observability"
)

// cardFetchAttempts bounds the number of transport-level retries fetch
// makes before giving up; it does not retry HTTP status failures.
const cardFetchAttempts = 3

// defaultCardTTL is the spec's default Card TTL (§5: "Card TTL default 5
// min").
const defaultCardTTL = 5 * time.Minute

// CardCache fetches and caches Agent Cards by base URL. Entries live in the
// cache for ttl; expired entries are lazily evicted on read, never by a
// background sweep.
type CardCache struct {
	mu     sync.RWMutex
	cards  map[string]*Card
	client *http.Client
	logger *observability.Logger
	ttl    time.Duration
}

// NewCardCache builds a CardCache using the given HTTP client, or
// http.DefaultClient if nil, and the given TTL, or defaultCardTTL if zero.
func NewCardCache(client *http.Client, logger *observability.Logger, ttl time.Duration) *CardCache {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = defaultCardTTL
	}
	return &CardCache{
		cards:  make(map[string]*Card),
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func (c *CardCache) expired(card *Card) bool {
	return time.Since(card.FetchedAt) >= c.ttl
}

// Get returns the cached Card for baseURL, fetching and caching it on first
// access or once the cached entry's TTL has elapsed.
func (c *CardCache) Get(ctx context.Context, baseURL string) (*Card, error) {
	key := NormalizeBaseURL(baseURL)

	c.mu.Lock()
	if card, ok := c.cards[key]; ok {
		if !c.expired(card) {
			c.mu.Unlock()
			return card, nil
		}
		delete(c.cards, key)
	}
	c.mu.Unlock()

	return c.Refresh(ctx, key)
}

// Refresh unconditionally re-fetches the Card for baseURL and replaces the
// cached entry.
func (c *CardCache) Refresh(ctx context.Context, baseURL string) (*Card, error) {
	key := NormalizeBaseURL(baseURL)
	card, err := c.fetch(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "agent card fetch failed", "url", key, "error", err)
		return nil, err
	}
	card.BaseURL = key
	card.FetchedAt = time.Now()

	c.mu.Lock()
	c.cards[key] = card
	c.mu.Unlock()

	return card, nil
}

// Peek returns the cached Card without triggering a fetch (the spec's
// getCached). A non-expired entry is returned as-is; an expired one is
// evicted and reported as absent.
func (c *CardCache) Peek(baseURL string) (*Card, bool) {
	key := NormalizeBaseURL(baseURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.cards[key]
	if !ok {
		return nil, false
	}
	if c.expired(card) {
		delete(c.cards, key)
		return nil, false
	}
	return card, true
}

// ListCached returns all non-expired cached Cards, evicting any expired
// entries encountered along the way as a side effect.
func (c *CardCache) ListCached() []*Card {
	c.mu.Lock()
	defer c.mu.Unlock()

	cards := make([]*Card, 0, len(c.cards))
	for key, card := range c.cards {
		if c.expired(card) {
			delete(c.cards, key)
			continue
		}
		cards = append(cards, card)
	}
	return cards
}

// Clear drops all cached entries.
func (c *CardCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards = make(map[string]*Card)
}

func (c *CardCache) fetch(ctx context.Context, baseURL string) (*Card, error) {
	url := baseURL + "/.well-known/agent-card.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build card request: %w", err)
	}

	result, err := backoff.Retry(ctx, backoff.CardFetchRetryPolicy(), cardFetchAttempts, func(attempt int) (*http.Response, error) {
		resp, err := c.client.Do(req)
		if err != nil && attempt < cardFetchAttempts {
			c.logger.Warn(ctx, "agent card transport error, retrying", "url", baseURL, "attempt", attempt, "error", err)
		}
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch card: %w", err)
	}
	resp := result.Value
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CardFetchFailed{Status: resp.StatusCode}
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}
	return &card, nil
}
