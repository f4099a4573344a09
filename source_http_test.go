package entitycache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, token TokenFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := NewHTTPSource(HTTPSourceConfig{BaseURL: srv.URL + "/", Token: token})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	return src
}

func TestHTTPSourceFetchesUser(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		path    string
	)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers, path = r.Header.Clone(), r.URL.Path
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octocat","id":583231,"site_admin":false,"name":"The Octocat","bio":null,"plan":{"name":"free"},"tags":["a"]}`))
	}, func() string { return "s3cret" })

	e, err := src.Fetch(t.Context(), "octocat")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := map[string]string{"login": "octocat", "id": "583231", "site_admin": "false", "name": "The Octocat"}
	if len(e.Fields) != len(want) {
		t.Fatalf("unexpected fields %v", e.Fields)
	}
	for k, v := range want {
		if e.Fields[k] != v {
			t.Fatalf("field %s: got %q want %q", k, e.Fields[k], v)
		}
	}
	if e.Key != "octocat" || e.LastRefreshedAt != nil {
		t.Fatalf("unexpected entity %+v", e)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/users/octocat" {
		t.Fatalf("unexpected path %q", path)
	}
	if got := headers.Get("Authorization"); got != "Bearer s3cret" {
		t.Fatalf("unexpected authorization %q", got)
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Fatalf("unexpected accept %q", got)
	}
	if _, err := uuid.Parse(headers.Get(CorrelationHeader)); err != nil {
		t.Fatalf("correlation id is not a uuid: %q", headers.Get(CorrelationHeader))
	}
}

func TestHTTPSourceCorrelationIDPerRequest(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(CorrelationHeader))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"login":"x"}`))
	}, nil)

	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(t.Context(), "x"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected distinct correlation ids, got %v", ids)
	}
}

func TestHTTPSourceOmitsEmptyToken(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
	)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}, func() string { return "" })

	if _, err := src.Fetch(t.Context(), "x"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if auth != "" {
		t.Fatalf("expected no authorization header, got %q", auth)
	}
}

func TestHTTPSourceErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			want:    ErrNotFound,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusBadGateway)
			},
			want: ErrNetwork,
		},
		{
			name: "redirect not followed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/elsewhere", http.StatusFound)
			},
			want: ErrNetwork,
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"login":`)) },
			want:    ErrDecode,
		},
		{
			name:    "not an object",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`null`)) },
			want:    ErrDecode,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := newTestSource(t, tc.handler, nil)
			_, err := src.Fetch(t.Context(), "octocat")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHTTPSourceKeyStaysOneSegment(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		_, _ = w.Write([]byte(`{"login":"served"}`))
	}, func() string { return "s3cret" })

	for key, want := range map[string]string{
		"../admin/secrets": "/users/..%2Fadmin%2Fsecrets",
		"a/b":              "/users/a%2Fb",
		"we?ird#key":       "/users/we%3Fird%23key",
	} {
		mu.Lock()
		paths = nil
		mu.Unlock()
		if _, err := src.Fetch(t.Context(), key); err != nil {
			t.Fatalf("fetch %q: %v", key, err)
		}
		mu.Lock()
		got := paths
		mu.Unlock()
		if len(got) != 1 || got[0] != want {
			t.Fatalf("fetch %q requested %v, want %q", key, got, want)
		}
	}

	for _, key := range []string{".", ".."} {
		if _, err := src.Fetch(t.Context(), key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("fetch %q: expected not found, got %v", key, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 0 {
		t.Fatalf("dot keys reached the server: %v", paths)
	}
}

func TestHTTPSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{BaseURL: url})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	var netErr *NetworkError
	if _, err := src.Fetch(t.Context(), "octocat"); !errors.As(err, &netErr) || netErr.Key != "octocat" {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestNewHTTPSourceValidatesBaseURL(t *testing.T) {
	if _, err := NewHTTPSource(HTTPSourceConfig{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := NewHTTPSource(HTTPSourceConfig{BaseURL: "://bad"}); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}
