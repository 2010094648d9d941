// Package model provides the data types shared by every fetchmirror stage:
// the resources read from a manifest, their content kinds and the refresh
// classes assigned to them.
package model

import (
	"net/url"
	"strings"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// ContentKind is the expected structural format of a resource body. It
// selects the validation rule for both cached and freshly fetched copies.
type ContentKind string

const (
	// KindStructured is a JSON structured record.
	KindStructured ContentKind = "structured"
	// KindGeometry is a KML geometry document.
	KindGeometry ContentKind = "geometry"
)

// ParseContentKind accepts the canonical names and the json/kml aliases.
func ParseContentKind(s string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "structured", "json":
		return KindStructured, nil
	case "geometry", "kml":
		return KindGeometry, nil
	default:
		return "", errors.ErrInvalidContentKindWithValue(s)
	}
}

// String implements fmt.Stringer.
func (k ContentKind) String() string { return string(k) }

// ResourceTask is one (locator, destination) pair read from a manifest.
// It is immutable once read; its identity is Destination.
type ResourceTask struct {
	Locator     *url.URL
	Destination string
	Kind        ContentKind
}

// URL returns the locator as a string, or "" when unset.
func (t ResourceTask) URL() string {
	if t.Locator == nil {
		return ""
	}
	return t.Locator.String()
}

// Class is the refresh decision taken for a task before any network access.
type Class int

const (
	// ClassFetch means the cached copy is missing or invalid.
	ClassFetch Class = iota
	// ClassSkip means the cached copy is valid and not known to be stale.
	ClassSkip
	// ClassForceRefresh means the cached copy is valid but the staleness
	// index says the remote resource changed after it was written.
	ClassForceRefresh
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassFetch:
		return "fetch"
	case ClassSkip:
		return "skip"
	case ClassForceRefresh:
		return "force-refresh"
	default:
		return "unknown"
	}
}

// NeedsFetch reports whether the class enters the fetch path.
func (c Class) NeedsFetch() bool {
	return c == ClassFetch || c == ClassForceRefresh
}

// PendingTask is a task that will be handed to the batch scheduler,
// together with the reason it is being fetched.
type PendingTask struct {
	Task  ResourceTask
	Class Class
}
