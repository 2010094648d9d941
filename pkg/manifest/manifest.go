// Package manifest reads the line-oriented list of resources to reconcile.
//
// Each non-blank, non-comment line holds exactly two tab-separated fields:
//
//	<locator>\t<destination path>
//
// Malformed lines are reported as warnings and skipped; they never abort a
// run. Only a manifest that cannot be opened or read is an error.
package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/archive"
	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

const (
	fieldSeparator = "\t"
	commentPrefix  = "#"
	fieldCount     = 2

	// maxLineBytes bounds a single manifest line; locators with long query
	// strings are common on portal APIs.
	maxLineBytes = 1 << 20
)

// Warning describes one skipped manifest line.
type Warning struct {
	Line   int
	Text   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %q", w.Line, w.Reason, w.Text)
}

// Result is the outcome of reading a manifest.
type Result struct {
	Tasks    []model.ResourceTask
	Warnings []Warning
}

// ReadFile opens path, decompressing it if needed, and parses it.
func ReadFile(ctx context.Context, path string, kind model.ContentKind) (*Result, error) {
	rc, err := archive.NewManager().Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrManifestUnreadable, "%s: %v", path, err)
	}
	defer func() { _ = rc.Close() }()

	return Read(rc, kind)
}

// Read parses manifest lines from r. Every task gets the given content kind.
// Task order matches line order.
func Read(r io.Reader, kind model.ContentKind) (*Result, error) {
	result := &Result{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		task, reason := parseLine(line, kind)
		if reason != "" {
			w := Warning{Line: lineNum, Text: line, Reason: reason}
			logger.Warn("Skipping malformed manifest line", logger.Fields{
				"line":   lineNum,
				"reason": reason,
			})
			result.Warnings = append(result.Warnings, w)
			continue
		}
		result.Tasks = append(result.Tasks, task)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrManifestUnreadable, "line %d: %v", lineNum+1, err)
	}

	return result, nil
}

func parseLine(line string, kind model.ContentKind) (model.ResourceTask, string) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) != fieldCount {
		return model.ResourceTask{}, fmt.Sprintf("expected %d tab-separated fields, got %d", fieldCount, len(parts))
	}

	rawURL := strings.TrimSpace(parts[0])
	destination := strings.TrimSpace(parts[1])
	if rawURL == "" || destination == "" {
		return model.ResourceTask{}, "empty locator or destination"
	}

	locator, err := url.Parse(rawURL)
	if err != nil {
		return model.ResourceTask{}, "unparseable locator"
	}
	if locator.Scheme != "http" && locator.Scheme != "https" || locator.Host == "" {
		return model.ResourceTask{}, "locator must be an absolute http(s) URL"
	}

	return model.ResourceTask{
		Locator:     locator,
		Destination: destination,
		Kind:        kind,
	}, ""
}
