package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Yash-Prakash1/connector/internal/agent"
	"github.com/Yash-Prakash1/connector/internal/model"
)

func turn() agent.TurnContext {
	return agent.TurnContext{
		Goal:          "rigol-ds1054z",
		Environment:   model.Environment{OS: model.Linux},
		Iteration:     1,
		MaxIterations: 20,
	}
}

func TestNextAction(t *testing.T) {
	var got agent.TurnContext
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/next-action" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-123" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(model.ActionCall{
			ID:     "call-1",
			Name:   model.ActionPipInstall,
			Params: map[string]any{"packages": []any{"pyvisa"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-123")
	call, err := c.NextAction(context.Background(), turn())
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if call.Name != model.ActionPipInstall {
		t.Errorf("action = %q", call.Name)
	}
	if got.Goal != "rigol-ds1054z" || got.MaxIterations != 20 {
		t.Errorf("oracle saw turn %+v", got)
	}
}

func TestNextActionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").NextAction(context.Background(), turn())
	if err == nil {
		t.Fatal("no error for failing oracle")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("err = %v, want server detail included", err)
	}
}

func TestNextActionEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").NextAction(context.Background(), turn())
	if err == nil {
		t.Fatal("no error for an empty oracle response")
	}
}

func TestNextActionUnreachable(t *testing.T) {
	_, err := New("http://127.0.0.1:0", "").NextAction(context.Background(), turn())
	if err == nil {
		t.Fatal("no error for an unreachable oracle")
	}
}
