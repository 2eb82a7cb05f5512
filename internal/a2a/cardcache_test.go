package a2a

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/agentmesh/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "text"})
}

func TestCardCacheGetFetchesAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"echo","description":"","url":"","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 0)

	card, err := cache.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if card.Name != "echo" {
		t.Fatalf("Name = %q, want echo", card.Name)
	}
	if card.BaseURL != NormalizeBaseURL(srv.URL) {
		t.Fatalf("BaseURL = %q", card.BaseURL)
	}

	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1 (second Get should hit cache)", hits)
	}
}

func TestCardCacheRefreshRefetches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"name":"echo","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 0)
	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := cache.Refresh(context.Background(), srv.URL); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2", hits)
	}
}

func TestCardCacheGetFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 0)
	_, err := cache.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Get() error = nil, want error")
	}
	var fetchErr *CardFetchFailed
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *CardFetchFailed, got %T", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", fetchErr.Status)
	}
}

type flakyRoundTripper struct {
	failures int
	calls    int
	inner    http.RoundTripper
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.inner.RoundTrip(req)
}

func TestCardCacheGetRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"echo","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	rt := &flakyRoundTripper{failures: 2, inner: srv.Client().Transport}
	client := &http.Client{Transport: rt}
	cache := NewCardCache(client, testLogger(), 0)

	card, err := cache.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil after transient failures recover", err)
	}
	if card.Name != "echo" {
		t.Fatalf("Name = %q, want echo", card.Name)
	}
	if rt.calls != 3 {
		t.Fatalf("calls = %d, want 3 (2 failures + 1 success)", rt.calls)
	}
}

func TestCardCacheGetGivesUpAfterExhaustingTransportRetries(t *testing.T) {
	rt := &flakyRoundTripper{failures: cardFetchAttempts, inner: http.DefaultTransport}
	client := &http.Client{Transport: rt}
	cache := NewCardCache(client, testLogger(), 0)

	_, err := cache.Get(context.Background(), "http://127.0.0.1:0")
	if err == nil {
		t.Fatal("Get() error = nil, want error after exhausting retries")
	}
	if rt.calls != cardFetchAttempts {
		t.Fatalf("calls = %d, want %d", rt.calls, cardFetchAttempts)
	}
}

func TestCardCacheGetRefetchesAfterTTLExpires(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"name":"echo","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 5*time.Millisecond)
	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2 (entry should have expired)", hits)
	}
}

func TestCardCachePeekEvictsExpiredEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"echo","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 5*time.Millisecond)
	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := cache.Peek(srv.URL); !ok {
		t.Fatal("Peek() ok = false immediately after Get, want true")
	}

	time.Sleep(10 * time.Millisecond)

	if _, ok := cache.Peek(srv.URL); ok {
		t.Fatal("Peek() ok = true after TTL expired, want false")
	}
	if len(cache.ListCached()) != 0 {
		t.Fatal("expected Peek to have evicted the expired entry")
	}
}

func TestCardCacheListCachedReturnsNonExpiredAndEvictsExpired(t *testing.T) {
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"a","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"b","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srvB.Close()

	cache := NewCardCache(http.DefaultClient, testLogger(), 5*time.Millisecond)
	if _, err := cache.Get(context.Background(), srvA.URL); err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(context.Background(), srvB.URL); err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}

	cards := cache.ListCached()
	if len(cards) != 1 || cards[0].Name != "b" {
		t.Fatalf("ListCached() = %+v, want only the non-expired 'b' entry", cards)
	}
	if len(cache.cards) != 1 {
		t.Fatalf("expected ListCached to evict the expired 'a' entry, internal map has %d entries", len(cache.cards))
	}
}

func TestCardCacheClearDropsAllEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"echo","version":"1.0","capabilities":{},"skills":[]}`))
	}))
	defer srv.Close()

	cache := NewCardCache(srv.Client(), testLogger(), 0)
	if _, err := cache.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	cache.Clear()

	if len(cache.ListCached()) != 0 {
		t.Fatal("expected Clear to drop all entries")
	}
}
