package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/index"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// EmbeddedTimestamp returns the update time recorded in the cached artifact.
//
// For structured content each configured field name is searched for
// breadth-first through the JSON tree; the first name found decides, and a
// value that is not a parseable timestamp is an error. Geometry documents
// carry no such field, so the file modification time is returned.
func (v *Validator) EmbeddedTimestamp(path string, kind model.ContentKind) (time.Time, error) {
	if kind == model.KindGeometry {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, errors.Wrap(errors.ErrNoTimestamp, err.Error())
		}
		return info.ModTime().UTC(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrNoTimestamp, err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCacheCorrupt, err.Error())
	}

	for _, field := range v.timestampFields {
		value, found := findField(root, field)
		if !found {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return time.Time{}, errors.Wrapf(errors.ErrTimestampFormat, "%s is %T", field, value)
		}
		return index.ParseTimestamp(s)
	}

	return time.Time{}, errors.ErrNoTimestamp
}

// findField searches the decoded JSON tree breadth-first for an object
// member named field. Null members count as absent. Object members are
// visited in key order so the result is deterministic.
func findField(root any, field string) (any, bool) {
	queue := []any{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch n := node.(type) {
		case map[string]any:
			if value, ok := n[field]; ok && value != nil {
				return value, true
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				queue = append(queue, n[k])
			}
		case []any:
			queue = append(queue, n...)
		}
	}
	return nil, false
}
