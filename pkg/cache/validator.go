// Package cache decides whether the on-disk copy of a resource is usable and
// extracts the update timestamp embedded in it.
//
// Nothing here is persisted: a cached artifact is always derived from the
// destination file as it exists right now.
package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"time"
	"unicode/utf8"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

var geometryMarkers = [][]byte{[]byte("<kml"), []byte("<placemark")}

// Artifact describes the current state of a destination file.
type Artifact struct {
	Path    string
	Exists  bool
	Size    int64
	ModTime time.Time
	Valid   bool
}

// Validator checks cached artifacts and response bodies against their
// content kind.
type Validator struct {
	timestampFields []string
}

// NewValidator creates a validator that looks for embedded timestamps under
// the given field names, in order.
func NewValidator(timestampFields []string) *Validator {
	return &Validator{timestampFields: append([]string(nil), timestampFields...)}
}

// TimestampFields returns the configured field names.
func (v *Validator) TimestampFields() []string {
	return append([]string(nil), v.timestampFields...)
}

// IsValid reports whether path holds a non-empty regular file whose content
// satisfies kind.
func (v *Validator) IsValid(path string, kind model.ContentKind) bool {
	return v.Inspect(path, kind).Valid
}

// Inspect stats and validates path.
func (v *Validator) Inspect(path string, kind model.ContentKind) Artifact {
	art := Artifact{Path: path}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return art
	}
	art.Exists = true
	art.Size = info.Size()
	art.ModTime = info.ModTime()
	if art.Size == 0 {
		return art
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return art
	}
	art.Valid = ValidateContent(data, kind) == nil
	return art
}

// ValidateContent applies the validation rule for kind to an in-memory body.
func (v *Validator) ValidateContent(body []byte, kind model.ContentKind) error {
	return ValidateContent(body, kind)
}

// ValidateContent applies the validation rule for kind to body. It returns
// an error wrapping ErrContentInvalid when the body does not qualify.
func ValidateContent(body []byte, kind model.ContentKind) error {
	if len(body) == 0 {
		return errors.Wrap(errors.ErrContentInvalid, "empty body")
	}

	switch kind {
	case model.KindStructured:
		if !utf8.Valid(body) {
			return errors.Wrap(errors.ErrContentInvalid, "body is not valid UTF-8")
		}
		if !json.Valid(body) {
			return errors.Wrap(errors.ErrContentInvalid, "body is not valid JSON")
		}
		return nil
	case model.KindGeometry:
		lower := bytes.ToLower(body)
		for _, marker := range geometryMarkers {
			if bytes.Contains(lower, marker) {
				return nil
			}
		}
		return errors.Wrap(errors.ErrContentInvalid, "body has no <kml> or <Placemark> element")
	default:
		return errors.ErrInvalidContentKindWithValue(string(kind))
	}
}
