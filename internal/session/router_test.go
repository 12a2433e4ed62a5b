package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cellarena/internal/arena"
)

// TestNewRouterBuildsFromRateLimitConfig verifies that NewRouter returns a
// router when given a rate-limit config instead of a pre-built limiter.
func TestNewRouterBuildsFromRateLimitConfig(t *testing.T) {
	world := arena.NewWorld(1000, 1000, arena.PopulationTargets{})
	hub := NewHub(world)

	router := NewRouter(RouterConfig{
		World:          world,
		Hub:            hub,
		DisableLogging: true,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	})

	if router == nil {
		t.Fatal("router should not be nil")
	}
}

func TestRouterHealthz(t *testing.T) {
	world := arena.NewWorld(1000, 1000, arena.PopulationTargets{})
	hub := NewHub(world)
	router := NewRouter(RouterConfig{World: world, Hub: hub, DisableLogging: true})

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouterGetState(t *testing.T) {
	world := arena.NewWorld(2000, 3000, arena.PopulationTargets{})
	world.AddPlayer(1, "alice", "#fff", false)
	hub := NewHub(world)
	router := NewRouter(RouterConfig{World: world, Hub: hub, DisableLogging: true})

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body["width"] != 2000.0 || body["height"] != 3000.0 {
		t.Errorf("unexpected dimensions in response: %v", body)
	}
	population, ok := body["population"].(map[string]interface{})
	if !ok {
		t.Fatal("expected population object in response")
	}
	if got := population["players"]; got != 1.0 {
		t.Errorf("expected 1 player in population, got %v", got)
	}
}

func TestRouterGetLeaderboard(t *testing.T) {
	world := arena.NewWorld(1000, 1000, arena.PopulationTargets{})
	world.AddPlayer(1, "alice", "#fff", false)
	world.AddPlayer(2, "bob", "#000", false)
	world.Tick(time.Now())
	hub := NewHub(world)
	router := NewRouter(RouterConfig{World: world, Hub: hub, DisableLogging: true})

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	entries, ok := body["leaderboard"].([]interface{})
	if !ok {
		t.Fatal("expected leaderboard array in response")
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 leaderboard entries, got %d", len(entries))
	}
}

func TestRouterCORSHeaders(t *testing.T) {
	world := arena.NewWorld(1000, 1000, arena.PopulationTargets{})
	hub := NewHub(world)
	router := NewRouter(RouterConfig{
		World:          world,
		Hub:            hub,
		DisableLogging: true,
		CORSOrigins:    []string{"http://test.example.com"},
	})

	ts := httptest.NewServer(router)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/state", nil)
	req.Header.Set("Origin", "http://test.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://test.example.com" {
		t.Errorf("expected CORS allow-origin header, got %q", got)
	}
}

func TestRouterRateLimiting(t *testing.T) {
	world := arena.NewWorld(1000, 1000, arena.PopulationTargets{})
	hub := NewHub(world)
	limiter := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		CleanupInterval:   time.Hour,
	})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		World:          world,
		Hub:            hub,
		RateLimiter:    limiter,
		DisableLogging: true,
	})

	ts := httptest.NewServer(router)
	defer ts.Close()

	var gotRateLimited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			gotRateLimited = true
			break
		}
	}

	if !gotRateLimited {
		t.Error("expected to be rate limited after burst exceeded")
	}
}
