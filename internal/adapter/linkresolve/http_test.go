package linkresolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolveMapLinkFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop", http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/maps/place/@33.5731,-7.5898,15z", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/maps/place/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resolver := New(Config{Timeout: time.Second})
	final, err := resolver.ResolveMapLink(context.Background(), server.URL+"/short")
	if err != nil {
		t.Fatalf("ResolveMapLink: %v", err)
	}
	if !strings.HasSuffix(final, "/maps/place/@33.5731,-7.5898,15z") {
		t.Fatalf("final URL = %q", final)
	}
}

func TestResolveMapLinkFallsBackToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/short" {
			http.Redirect(w, r, "/maps?q=33.5731,-7.5898", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	final, err := New(Config{}).ResolveMapLink(context.Background(), server.URL+"/short")
	if err != nil {
		t.Fatalf("ResolveMapLink: %v", err)
	}
	if !strings.Contains(final, "q=33.5731,-7.5898") {
		t.Fatalf("final URL = %q", final)
	}
}

func TestResolveMapLinkFailures(t *testing.T) {
	loop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
	}))
	defer loop.Close()

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer missing.Close()

	resolver := New(Config{MaxRedirects: 3, Timeout: time.Second})

	tests := []struct {
		name string
		url  string
	}{
		{"redirect loop", loop.URL + "/a"},
		{"not found", missing.URL + "/x"},
		{"bad url", "://nope"},
	}

	for _, tt := range tests {
		if _, err := resolver.ResolveMapLink(context.Background(), tt.url); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}
