// Package testutil provides an in-process portal double and fixture helpers
// shared by package and command tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glorpus-work/fetchmirror/internal/logger"
)

// Response is what the portal serves for one path.
type Response struct {
	Status int
	Body   string
	Delay  time.Duration
}

// Portal is an HTTP server that serves canned responses per path and
// records how it was called. Unknown paths get 404.
type Portal struct {
	Server *httptest.Server

	mu      sync.Mutex
	routes  map[string]Response
	hits    map[string]int
	methods []string

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewPortal starts a portal that is closed when the test ends.
func NewPortal(t *testing.T) *Portal {
	t.Helper()
	p := &Portal{
		routes: map[string]Response{},
		hits:   map[string]int{},
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Portal) serve(w http.ResponseWriter, r *http.Request) {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		prev := p.peak.Load()
		if cur <= prev || p.peak.CompareAndSwap(prev, cur) {
			break
		}
	}

	p.mu.Lock()
	resp, ok := p.routes[r.URL.Path]
	p.hits[r.URL.Path]++
	p.methods = append(p.methods, r.Method)
	p.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

// Handle registers the response for path.
func (p *Portal) Handle(path string, resp Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[path] = resp
}

// URL returns the absolute locator for path.
func (p *Portal) URL(path string) *url.URL {
	u, err := url.Parse(p.Server.URL + path)
	if err != nil {
		panic(fmt.Sprintf("invalid portal path %q: %v", path, err))
	}
	return u
}

// Hits returns how many requests path received.
func (p *Portal) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// TotalHits returns the number of requests received on any path.
func (p *Portal) TotalHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.hits {
		n += c
	}
	return n
}

// Methods returns the request methods in arrival order.
func (p *Portal) Methods() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.methods...)
}

// PeakConcurrency returns the largest number of requests served at once.
func (p *Portal) PeakConcurrency() int64 {
	return p.peak.Load()
}

// WriteManifest writes lines joined by newlines to a manifest file in a
// temporary directory and returns its path.
func WriteManifest(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.tsv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	logger.Debugf("Wrote test manifest to: %s", path)
	return path
}

// ManifestLine formats one manifest entry.
func ManifestLine(locator *url.URL, destination string) string {
	return locator.String() + "\t" + destination
}
