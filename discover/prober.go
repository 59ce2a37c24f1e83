// Package discover probes candidate hosts for a running parley server. It
// answers the debugging question "which address do I give --server": every
// candidate is expanded to a base URL and probed concurrently for the health
// and login endpoints.
package discover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultProbeTimeout = 2 * time.Second
	defaultPort         = "8080"
)

// Result is the finding for one candidate base URL.
type Result struct {
	BaseURL string
	// Healthy reports whether GET /health answered 200.
	Healthy bool
	// HasLogin reports whether POST /api/login behaved like a parley login
	// endpoint (it rejects an empty credential probe with 400/401 instead
	// of 404/405).
	HasLogin bool
	// Latency of the health probe, zero when unreachable.
	Latency time.Duration
	// Err is the transport error for unreachable candidates.
	Err error
}

// Found reports whether the candidate looks like a parley server.
func (r Result) Found() bool {
	return r.Healthy && r.HasLogin
}

// Prober checks candidate base URLs concurrently.
type Prober struct {
	client *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

// Probe scatters one probe per candidate and gathers the findings in input
// order. A failed candidate degrades to a Result with Err set; it never
// fails the whole probe.
func (p *Prober) Probe(ctx context.Context, candidates []string) []Result {
	results := make([]Result, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, baseURL string) {
			defer wg.Done()
			results[i] = p.probeOne(ctx, baseURL)
		}(i, candidate)
	}
	wg.Wait()

	return results
}

func (p *Prober) probeOne(ctx context.Context, baseURL string) Result {
	result := Result{BaseURL: baseURL}

	start := time.Now()
	status, body, err := p.get(ctx, baseURL+"/health")
	if err != nil {
		result.Err = err
		return result
	}
	result.Latency = time.Since(start)
	result.Healthy = status == http.StatusOK && strings.TrimSpace(body) == "ok"

	// An empty credential probe distinguishes a parley login endpoint (which
	// validates and rejects) from an arbitrary web server (404/405).
	status, _, err = p.post(ctx, baseURL+"/api/login", `{}`)
	if err != nil {
		return result
	}
	result.HasLogin = status == http.StatusBadRequest || status == http.StatusUnauthorized

	return result
}

func (p *Prober) get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	return p.do(req)
}

func (p *Prober) post(ctx context.Context, url, body string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *Prober) do(req *http.Request) (int, string, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, string(body), nil
}

// ExpandCandidates turns user-supplied hosts into base URLs. Hosts without a
// scheme get http://, hosts without a port get the default server port.
func ExpandCandidates(hosts []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, host := range hosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		url := expandHost(host)
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}

func expandHost(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	if !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%s", host, defaultPort)
	}
	return "http://" + host
}
