package a2a

import (
	"context"
	"strings"
	"sync"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

// defaultDiscoverLimit caps Discover results when the caller leaves limit
// unset or non-positive (spec §5: "discover limit default 10").
const defaultDiscoverLimit = 10

// Registry tracks the set of remote agents the local agent is willing to
// call directly, keyed by normalized base URL.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]KnownAgent
	cards  *CardCache
	logger *observability.Logger
}

// NewRegistry builds an empty Registry backed by cards for discovery.
func NewRegistry(cards *CardCache, logger *observability.Logger) *Registry {
	return &Registry{
		agents: make(map[string]KnownAgent),
		cards:  cards,
		logger: logger,
	}
}

// Add registers or replaces a known agent.
func (r *Registry) Add(agent KnownAgent) {
	key := NormalizeBaseURL(agent.URL)
	agent.URL = key

	r.mu.Lock()
	r.agents[key] = agent
	r.mu.Unlock()
}

// Remove deletes a known agent by base URL.
func (r *Registry) Remove(url string) {
	key := NormalizeBaseURL(url)
	r.mu.Lock()
	delete(r.agents, key)
	r.mu.Unlock()
}

// Get returns the known agent entry for url, if any.
func (r *Registry) Get(url string) (KnownAgent, bool) {
	key := NormalizeBaseURL(url)
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[key]
	return agent, ok
}

// List returns a snapshot of every known agent.
func (r *Registry) List() []KnownAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]KnownAgent, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, agent)
	}
	return out
}

// fetchAll fan-outs a card fetch across every known agent concurrently,
// ignoring individual fetch failures (logged, not surfaced) so that one
// unreachable agent doesn't block discovery of the rest. Already-cached
// cards are folded in for agents that weren't re-fetched.
func (r *Registry) fetchAll(ctx context.Context) []*Card {
	agents := r.List()
	cards := make([]*Card, len(agents))

	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			card, err := r.cards.Get(ctx, url)
			if err != nil {
				r.logger.Warn(ctx, "discovery fetch failed", "url", url, "error", err)
				if cached, ok := r.cards.Peek(url); ok {
					cards[i] = cached
				}
				return
			}
			cards[i] = card
		}(i, agent.URL)
	}
	wg.Wait()

	out := make([]*Card, 0, len(cards))
	for _, card := range cards {
		if card != nil {
			out = append(out, card)
		}
	}
	return out
}

// Discover implements the spec's discover({query?, tags?, limit}) lookup: it
// fetches (or reuses the cache for) every known agent's Card, then filters by
// query (a case-insensitive substring match against the card's name,
// description, and each skill's name/description/tags) and/or tags (an agent
// matches if any known skill tag intersects the requested set). Results are
// returned in stable insertion order and capped at limit (default
// defaultDiscoverLimit when limit <= 0).
func (r *Registry) Discover(ctx context.Context, query string, tags []string, limit int) []*Card {
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]*Card, 0, limit)
	for _, card := range r.fetchAll(ctx) {
		if len(out) >= limit {
			break
		}
		if query != "" && !cardMatchesQuery(card, query) {
			continue
		}
		if len(tags) > 0 && !cardMatchesTags(card, tags) {
			continue
		}
		out = append(out, card)
	}
	return out
}

func cardMatchesQuery(card *Card, query string) bool {
	if strings.Contains(strings.ToLower(card.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(card.Description), query) {
		return true
	}
	for _, skill := range card.Skills {
		if strings.Contains(strings.ToLower(skill.Name), query) {
			return true
		}
		if strings.Contains(strings.ToLower(skill.Description), query) {
			return true
		}
		for _, tag := range skill.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				return true
			}
		}
	}
	return false
}

func cardMatchesTags(card *Card, wanted []string) bool {
	for _, skill := range card.Skills {
		for _, tag := range skill.Tags {
			for _, want := range wanted {
				if strings.EqualFold(tag, want) {
					return true
				}
			}
		}
	}
	return false
}

// FindBySkill returns the base URLs of known agents whose cached card
// advertises a skill matching skillID. Agents with no cached card yet are
// skipped rather than fetched, keeping this a cheap, synchronous lookup.
func (r *Registry) FindBySkill(skillID string) []string {
	var matches []string
	for _, agent := range r.List() {
		card, ok := r.cards.Peek(agent.URL)
		if !ok {
			continue
		}
		for _, skill := range card.Skills {
			if skill.ID == skillID {
				matches = append(matches, agent.URL)
				break
			}
		}
	}
	return matches
}
