package pool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func poolPattern() model.ResolutionPattern {
	return model.ResolutionPattern{
		ID:   "pool-abc",
		Goal: "rigol-ds1054z",
		OS:   model.Linux,
		Steps: []model.NormalizedStep{
			{Action: model.StepPipInstall, Detail: map[string]any{"packages": []any{"pyvisa"}}},
		},
		Stats: model.PatternStats{SuccessCount: 9, TotalCount: 10, SuccessRate: 0.9, Confidence: 9},
	}
}

func testContribution() Contribution {
	return Contribution{
		Goal:       "rigol-ds1054z",
		OS:         model.Linux,
		Outcome:    "success",
		Success:    true,
		TotalSteps: 3,
	}
}

func TestPullCachesKnowledge(t *testing.T) {
	s := newTestStore(t)
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/knowledge" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("goal") != "rigol-ds1054z" {
			t.Errorf("goal query = %q", r.URL.Query().Get("goal"))
		}
		json.NewEncoder(w).Encode(Knowledge{
			Patterns: []model.ResolutionPattern{poolPattern()},
			ErrorResolutions: []model.ErrorResolution{
				{ID: "pool-er", ErrorFingerprint: "abc123def456", Action: model.StepPermissionFix, SuccessCount: 4},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", s, zap.NewNop())
	k := c.Pull(context.Background(), "rigol-ds1054z", model.Linux)
	if k == nil || len(k.Patterns) != 1 {
		t.Fatalf("Pull returned %+v", k)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// The pulled knowledge must land in the local cache.
	cached, err := s.CachedPatterns(context.Background(), "rigol-ds1054z", model.Linux)
	if err != nil {
		t.Fatalf("CachedPatterns: %v", err)
	}
	if len(cached) != 1 || cached[0].ID != "pool-abc" {
		t.Errorf("cache = %+v", cached)
	}
}

func TestPullFallsBackToCache(t *testing.T) {
	s := newTestStore(t)
	if err := s.CachePatterns(context.Background(), []model.ResolutionPattern{poolPattern()}); err != nil {
		t.Fatalf("CachePatterns: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"maintenance"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", s, zap.NewNop())
	k := c.Pull(context.Background(), "rigol-ds1054z", model.Linux)
	if k == nil || len(k.Patterns) != 1 {
		t.Errorf("cache fallback returned %+v", k)
	}
}

func TestPullOfflineColdCache(t *testing.T) {
	s := newTestStore(t)
	c := New("", "", s, zap.NewNop())
	if k := c.Pull(context.Background(), "rigol-ds1054z", model.Linux); k != nil {
		t.Errorf("cold offline pull returned %+v, want nil", k)
	}
}

func TestPullDisabledByTelemetry(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetConfig(context.Background(), "telemetry", "off"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "", s, zap.NewNop())
	if k := c.Pull(context.Background(), "rigol-ds1054z", model.Linux); k != nil {
		t.Errorf("disabled pull returned %+v", k)
	}
	if called {
		t.Error("disabled client still contacted the pool")
	}
}

func TestPushDelivers(t *testing.T) {
	s := newTestStore(t)
	var received Contribution
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/contributions" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "", s, zap.NewNop())
	if !c.Push(context.Background(), testContribution()) {
		t.Fatal("Push reported failure")
	}
	if received.Goal != "rigol-ds1054z" || !received.Success {
		t.Errorf("received = %+v", received)
	}

	pending, _ := s.PendingUploads(context.Background())
	if len(pending) != 0 {
		t.Errorf("delivered push left %d queued items", len(pending))
	}
}

func TestPushQueuesOnFailure(t *testing.T) {
	s := newTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", s, zap.NewNop())
	if c.Push(context.Background(), testContribution()) {
		t.Fatal("Push reported success despite server error")
	}

	pending, err := s.PendingUploads(context.Background())
	if err != nil {
		t.Fatalf("PendingUploads: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d queued items, want 1", len(pending))
	}
	var queued Contribution
	if err := json.Unmarshal(pending[0].Payload, &queued); err != nil {
		t.Fatalf("queued payload unparseable: %v", err)
	}
	if queued.Goal != "rigol-ds1054z" {
		t.Errorf("queued = %+v", queued)
	}
}

func TestPushOfflineQueues(t *testing.T) {
	s := newTestStore(t)
	c := New("", "", s, zap.NewNop())
	if c.Push(context.Background(), testContribution()) {
		t.Fatal("offline Push reported success")
	}
	pending, _ := s.PendingUploads(context.Background())
	if len(pending) != 1 {
		t.Errorf("got %d queued items, want 1", len(pending))
	}
}

func TestFlushQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.QueueUpload(ctx, []byte(`{"goal":"a"}`)); err != nil {
		t.Fatalf("QueueUpload: %v", err)
	}
	if err := s.QueueUpload(ctx, []byte(`{"goal":"b"}`)); err != nil {
		t.Fatalf("QueueUpload: %v", err)
	}

	// Server accepts only goal "a".
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c Contribution
		json.NewDecoder(r.Body).Decode(&c)
		if c.Goal != "a" {
			http.Error(w, `{"error":"rejected"}`, http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", s, zap.NewNop())
	c.FlushQueue(ctx)

	pending, err := s.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending after flush, want 1", len(pending))
	}
	if pending[0].Attempts != 1 {
		t.Errorf("failed item attempts = %d, want 1", pending[0].Attempts)
	}
}
