// Package index loads the optional staleness index: an authoritative
// mapping from resource id to the time the remote resource last changed.
//
// The index is advisory. Every way it can be unavailable degrades it to an
// empty index, and an empty index never marks anything stale.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/hashicorp/go-version"
)

const (
	// DefaultRecordsKey names the top-level array holding records.
	DefaultRecordsKey = "records"
	// DefaultIDField names the record identifier field.
	DefaultIDField = "id"
	// DefaultTimestampField names the record last-updated field.
	DefaultTimestampField = "updated_at"
	// DefaultVersionConstraint is the accepted range for format_version.
	DefaultVersionConstraint = ">= 1.0, < 2.0"

	formatVersionKey = "format_version"
)

// Options controls how an index document is interpreted.
type Options struct {
	RecordsKey        string
	IDField           string
	TimestampField    string
	VersionConstraint string
}

func (o Options) withDefaults() Options {
	if o.RecordsKey == "" {
		o.RecordsKey = DefaultRecordsKey
	}
	if o.IDField == "" {
		o.IDField = DefaultIDField
	}
	if o.TimestampField == "" {
		o.TimestampField = DefaultTimestampField
	}
	if o.VersionConstraint == "" {
		o.VersionConstraint = DefaultVersionConstraint
	}
	return o
}

// Index is a read-only resource id to last-updated mapping.
type Index struct {
	entries map[string]time.Time
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{entries: map[string]time.Time{}}
}

// Lookup returns the last-updated time recorded for id.
func (idx *Index) Lookup(id string) (time.Time, bool) {
	if idx == nil {
		return time.Time{}, false
	}
	t, ok := idx.entries[id]
	return t, ok
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// ResourceID derives the index key for a destination: its base name with
// the final extension removed.
func ResourceID(destination string) string {
	base := filepath.Base(destination)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse builds an index from a JSON document. It returns an error for
// malformed JSON or an incompatible format_version; the returned []error
// lists records that were skipped.
func Parse(data []byte, opts Options) (*Index, []error, error) {
	opts = opts.withDefaults()

	doc, err := decodeObject(data)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrIndexParse, err.Error())
	}

	if err := checkFormatVersion(doc.members, opts.VersionConstraint); err != nil {
		return nil, nil, err
	}

	raw, err := recordsArray(doc, opts.RecordsKey)
	if err != nil {
		return nil, nil, err
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, errors.Wrapf(errors.ErrIndexParse, "records are not objects: %v", err)
	}

	idx := Empty()
	var skipped []error
	for i, rec := range records {
		id, ok := recordID(rec[opts.IDField])
		if !ok {
			skipped = append(skipped, fmt.Errorf("record %d: missing or invalid %q", i, opts.IDField))
			continue
		}
		var rawTS string
		if err := json.Unmarshal(rec[opts.TimestampField], &rawTS); err != nil || rawTS == "" {
			skipped = append(skipped, fmt.Errorf("record %d (%s): missing %q", i, id, opts.TimestampField))
			continue
		}
		ts, err := ParseTimestamp(rawTS)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d (%s): %w", i, id, err))
			continue
		}
		if prev, ok := idx.entries[id]; !ok || ts.After(prev) {
			idx.entries[id] = ts
		}
	}

	return idx, skipped, nil
}

func checkFormatVersion(doc map[string]json.RawMessage, constraint string) error {
	raw, ok := doc[formatVersionKey]
	if !ok {
		return nil
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return errors.Wrapf(errors.ErrIndexVersion, "format_version is neither string nor number")
		}
		v = n.String()
	}

	parsed, err := version.NewVersion(v)
	if err != nil {
		return errors.Wrapf(errors.ErrIndexVersion, "%q: %v", v, err)
	}
	constraints, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(errors.ErrIndexVersion, "invalid constraint %q: %v", constraint, err)
	}
	if !constraints.Check(parsed) {
		return errors.Wrapf(errors.ErrIndexVersion, "%s does not satisfy %s", parsed, constraints)
	}
	return nil
}

// object is a decoded top-level JSON object that remembers member order.
type object struct {
	keys    []string
	members map[string]json.RawMessage
}

func decodeObject(data []byte) (*object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	obj := &object{members: map[string]json.RawMessage{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if _, seen := obj.members[key]; !seen {
			obj.keys = append(obj.keys, key)
		}
		obj.members[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return obj, nil
}

func recordsArray(doc *object, key string) (json.RawMessage, error) {
	if raw, ok := doc.members[key]; ok {
		if isArray(raw) {
			return raw, nil
		}
		return nil, errors.Wrapf(errors.ErrIndexParse, "%q is not an array", key)
	}

	for _, name := range doc.keys {
		if isArray(doc.members[name]) {
			return doc.members[name], nil
		}
	}
	return nil, errors.Wrapf(errors.ErrIndexParse, "no records array found")
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func recordID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return n.String(), true
	}
	return "", false
}
