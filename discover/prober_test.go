package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newParleyLikeServer mimics the two endpoints the prober sniffs for.
func newParleyLikeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProbe_FindsServer(t *testing.T) {
	server := newParleyLikeServer(t)

	results := NewProber(0).Probe(context.Background(), []string{server.URL})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if !r.Healthy || !r.HasLogin || !r.Found() {
		t.Errorf("expected a full match, got %+v", r)
	}
	if r.Latency <= 0 {
		t.Error("expected a measured latency")
	}
	if r.Err != nil {
		t.Errorf("unexpected error: %v", r.Err)
	}
}

func TestProbe_PlainWebServerIsNotAMatch(t *testing.T) {
	// Health answers, but there is no login endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	results := NewProber(0).Probe(context.Background(), []string{server.URL})
	r := results[0]
	if !r.Healthy {
		t.Error("health endpoint should have matched")
	}
	if r.HasLogin || r.Found() {
		t.Errorf("a server without a login endpoint must not be a match, got %+v", r)
	}
}

func TestProbe_UnreachableHostDegrades(t *testing.T) {
	server := newParleyLikeServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	results := NewProber(500 * time.Millisecond).Probe(
		context.Background(),
		[]string{deadURL, server.URL},
	)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Err == nil || results[0].Found() {
		t.Errorf("dead host should carry an error, got %+v", results[0])
	}
	// One dead candidate must not poison the live one.
	if !results[1].Found() {
		t.Errorf("live host should still be found, got %+v", results[1])
	}
	if results[0].BaseURL != deadURL || results[1].BaseURL != server.URL {
		t.Error("results must keep input order")
	}
}

func TestExpandCandidates(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "bare host gets scheme and port",
			in:   []string{"chat.local"},
			want: []string{"http://chat.local:8080"},
		},
		{
			name: "host with port gets scheme only",
			in:   []string{"chat.local:9000"},
			want: []string{"http://chat.local:9000"},
		},
		{
			name: "full URL passes through without trailing slash",
			in:   []string{"https://chat.example.com/"},
			want: []string{"https://chat.example.com"},
		},
		{
			name: "duplicates and blanks collapse",
			in:   []string{"a", "", "a", "  "},
			want: []string{"http://a:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandCandidates(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidate %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
