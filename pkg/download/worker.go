package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/auth"
	"github.com/glorpus-work/fetchmirror/pkg/cache"
	pkgerrors "github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/fsutil"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "fetchmirror/1.0"

// Worker fetches resources over HTTP, validates the response body and
// commits it atomically. It is safe for concurrent use.
type Worker struct {
	client       *http.Client
	method       string
	userAgent    string
	limiter      *rate.Limiter
	maxBodyBytes int64
	auth         auth.Authenticator
	commit       func(src, dst string) error
}

// NewWorker creates a worker from opts.
func NewWorker(opts Options) *Worker {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodPost
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for portals with broken chains
	}

	w := &Worker{
		client:       &http.Client{Timeout: opts.Timeout, Transport: transport},
		method:       method,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		auth:         opts.Auth,
		commit:       fsutil.Move,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return w
}

// Method returns the HTTP verb used for requests.
func (w *Worker) Method() string { return w.method }

// Fetch retrieves task.Locator and replaces task.Destination with the body
// once it validates. On any error the destination is left untouched.
// There are no retries.
func (w *Worker) Fetch(ctx context.Context, task model.ResourceTask) error {
	if task.Locator == nil {
		return fmt.Errorf("nil locator for %s: %w", task.Destination, pkgerrors.ErrNetwork)
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %v: %w", err, pkgerrors.ErrNetwork)
		}
	}

	body, err := w.doRequest(ctx, task)
	if err != nil {
		return err
	}

	if err := cache.ValidateContent(body, task.Kind); err != nil {
		return fmt.Errorf("%s: %w", task.URL(), err)
	}

	if err := w.writeAtomic(task.Destination, body); err != nil {
		return err
	}

	logger.Debug("Committed artifact", logger.Fields{
		"url":         task.URL(),
		"destination": task.Destination,
		"bytes":       len(body),
	})
	return nil
}

func (w *Worker) doRequest(ctx context.Context, task model.ResourceTask) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, w.method, task.URL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v: %w", err, pkgerrors.ErrNetwork)
	}
	req.Header.Set("User-Agent", w.userAgent)
	if w.auth != nil {
		if err := w.auth.Apply(req); err != nil {
			return nil, fmt.Errorf("%s: %v: %w", task.URL(), err, pkgerrors.ErrNetwork)
		}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", task.URL(), err, pkgerrors.ErrNetwork)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: %w", task.URL(), pkgerrors.ErrHTTPStatusWithCode(resp.StatusCode))
	}

	reader := io.Reader(resp.Body)
	if w.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, w.maxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %v: %w", task.URL(), err, pkgerrors.ErrNetwork)
	}
	if w.maxBodyBytes > 0 && int64(len(body)) > w.maxBodyBytes {
		return nil, fmt.Errorf("%s: body exceeds %d bytes: %w", task.URL(), w.maxBodyBytes, pkgerrors.ErrContentInvalid)
	}
	return body, nil
}

// writeAtomic writes body to a temp sibling of dst and renames it into
// place. The temp file is removed on every failure path.
func (w *Worker) writeAtomic(dst string, body []byte) error {
	if err := fsutil.EnsureFileDir(dst); err != nil {
		return fmt.Errorf("%s: %v: %w", dst, err, pkgerrors.ErrWrite)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), fsutil.TempPattern(dst))
	if err != nil {
		return fmt.Errorf("%s: could not create temp file: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: could not write file: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: could not sync file: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: could not close file: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("%s: could not set permissions: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	if err := w.commit(tmpPath, dst); err != nil {
		return fmt.Errorf("%s: could not finalize file: %v: %w", dst, err, pkgerrors.ErrWrite)
	}
	committed = true
	return nil
}
