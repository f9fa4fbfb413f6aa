package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSemanticClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "coffee" {
			t.Fatalf("expected q=coffee, got %q", q)
		}
		if limit := r.URL.Query().Get("limit"); limit != "3" {
			t.Fatalf("expected limit=3, got %q", limit)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"entry":"brewing notes","file":"coffee.md","score":0.92}]`))
	}))
	defer srv.Close()

	client := NewSemanticClient(srv.URL, nil)
	results, err := client.Search(context.Background(), "coffee", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Entry != "brewing notes" || results[0].File != "coffee.md" || results[0].Score != 0.92 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSemanticClientSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSemanticClient(srv.URL, nil)
	if _, err := client.Search(context.Background(), "x", 1); err == nil {
		t.Fatal("expected error on 500 status")
	}
}

func TestSemanticClientHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status string
		code   int
		want   bool
	}{
		{"healthy", "healthy", http.StatusOK, true},
		{"degraded", "degraded", http.StatusOK, true},
		{"unhealthy", "unhealthy", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(`{"status":"` + tt.status + `"}`))
			}))
			defer srv.Close()

			client := NewSemanticClient(srv.URL, nil)
			if got := client.HealthCheck(context.Background()); got != tt.want {
				t.Errorf("HealthCheck() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSemanticClientHealthCheckUnreachable(t *testing.T) {
	client := NewSemanticClient("http://127.0.0.1:1", nil)
	if client.HealthCheck(context.Background()) {
		t.Fatal("expected HealthCheck() to be false for an unreachable host")
	}
}
