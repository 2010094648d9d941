//go:generate mockgen -destination=./mocks/download.go . Fetcher

package download

import (
	"context"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/auth"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// Fetcher retrieves one resource and commits it to its destination.
// A nil error means the destination now holds the complete, validated body.
type Fetcher interface {
	Fetch(ctx context.Context, task model.ResourceTask) error
}

// Options control the behavior of the fetch worker.
type Options struct {
	Method             string        // GET or POST; POST when empty
	Timeout            time.Duration // whole request, including body read
	ConnectTimeout     time.Duration // TCP connect only
	UserAgent          string
	RateLimit          float64 // requests per second across all workers; 0 disables
	RateBurst          int
	InsecureSkipVerify bool
	MaxBodyBytes       int64              // 0 means unlimited
	Auth               auth.Authenticator // optional
}
