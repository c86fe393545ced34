package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRouterDefaultMounts(t *testing.T) {
	router := NewRouter()

	cases := []struct {
		method string
		path   string
		status int
	}{
		{method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{method: http.MethodGet, path: "/readyz", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/menu", status: http.StatusNotImplemented},
		{method: http.MethodGet, path: "/api/v1/cart", status: http.StatusNotImplemented},
		{method: http.MethodPost, path: "/api/v1/cart:toggle", status: http.StatusNotImplemented},
		{method: http.MethodPut, path: "/api/v1/checkout/draft", status: http.StatusNotImplemented},
		{method: http.MethodGet, path: "/api/v1/unknown", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s %s: expected application/json, got %q", tc.method, tc.path, ct)
		}
	}
}

func TestNewRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter(WithMenuRoutes(NewMenuHandlers(sampleCatalog()).Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/menu", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNewRouterCustomMiddlewareRuns(t *testing.T) {
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(WithMiddlewares(mw), WithBasePath("/v2"), WithMenuRoutes(NewMenuHandlers(sampleCatalog()).Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v2/sections", nil))
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("expected middleware and route to run, got %d called=%v", rr.Code, called)
	}
}

func TestNewRouterSessionMiddlewaresScopedToCart(t *testing.T) {
	var hits []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(
		WithSessionMiddlewares(mw),
		WithMenuRoutes(NewMenuHandlers(sampleCatalog()).Routes),
	)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sections", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if len(hits) != 1 || hits[0] != "/api/v1/cart" {
		t.Fatalf("expected middleware only on cart routes, got %v", hits)
	}
}
