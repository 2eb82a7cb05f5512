package a2a

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry(NewCardCache(nil, testLogger(), 0), testLogger())
	reg.Add(KnownAgent{URL: "https://agent.example/", DisplayName: "Echo"})

	agent, ok := reg.Get("https://agent.example")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if agent.DisplayName != "Echo" {
		t.Errorf("DisplayName = %q", agent.DisplayName)
	}

	reg.Remove("https://agent.example")
	if _, ok := reg.Get("https://agent.example"); ok {
		t.Fatal("Get() ok = true after Remove, want false")
	}
}

func TestRegistryDiscoverIgnoresFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"good","version":"1.0","capabilities":{},"skills":[{"id":"sum","name":"sum"}]}`))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cache := NewCardCache(nil, testLogger(), 0)
	reg := NewRegistry(cache, testLogger())
	reg.Add(KnownAgent{URL: good.URL})
	reg.Add(KnownAgent{URL: bad.URL})

	cards := reg.Discover(context.Background(), "", nil, 0)
	if len(cards) != 1 {
		t.Fatalf("len(cards) = %d, want 1", len(cards))
	}
	if cards[0].Name != "good" {
		t.Errorf("Name = %q, want good", cards[0].Name)
	}

	matches := reg.FindBySkill("sum")
	if len(matches) != 1 || matches[0] != NormalizeBaseURL(good.URL) {
		t.Errorf("FindBySkill = %v", matches)
	}
}

func TestRegistryDiscoverFiltersByQueryAndTags(t *testing.T) {
	calc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"calculator","description":"arithmetic helper","version":"1.0","capabilities":{},"skills":[{"id":"sum","name":"sum","description":"adds numbers","tags":["math","numeric"]}]}`))
	}))
	defer calc.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"weather","description":"forecast lookup","version":"1.0","capabilities":{},"skills":[{"id":"forecast","name":"forecast","description":"gets weather","tags":["outdoors"]}]}`))
	}))
	defer weather.Close()

	reg := NewRegistry(NewCardCache(nil, testLogger(), 0), testLogger())
	reg.Add(KnownAgent{URL: calc.URL})
	reg.Add(KnownAgent{URL: weather.URL})

	byQuery := reg.Discover(context.Background(), "arithmetic", nil, 0)
	if len(byQuery) != 1 || byQuery[0].Name != "calculator" {
		t.Fatalf("Discover(query) = %+v, want only calculator", byQuery)
	}

	byTag := reg.Discover(context.Background(), "", []string{"numeric"}, 0)
	if len(byTag) != 1 || byTag[0].Name != "calculator" {
		t.Fatalf("Discover(tags) = %+v, want only calculator", byTag)
	}

	limited := reg.Discover(context.Background(), "", nil, 1)
	if len(limited) != 1 {
		t.Fatalf("Discover(limit=1) returned %d cards, want 1", len(limited))
	}
}
