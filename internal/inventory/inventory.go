// Package inventory provides the default camera list loader described in
// SPEC_FULL.md §6: a CAMERAS environment variable of name=source pairs,
// standing in for the spreadsheet ingestion spec.md places out of scope.
package inventory

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bellanda/local-cameras-view/internal/model"
)

// Entry pairs a camera name with its resolved source.
type Entry struct {
	Name   string
	Source model.SourceRef
}

// Load parses the CAMERAS environment variable into a list of entries.
// Each pair is "name=source" separated by ";"; source is either an RTSP
// URL (containing "://") or a bare integer V4L2 device index.
//
// CAMERAS=porch=rtsp://192.168.1.20:554/stream1;desk=0
func Load() ([]Entry, error) {
	return parse(os.Getenv("CAMERAS"))
}

func parse(raw string) ([]Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	pairs := strings.Split(raw, ";")
	entries := make([]Entry, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, source, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("inventory: malformed entry %q, want name=source", pair)
		}
		name = strings.TrimSpace(name)
		source = strings.TrimSpace(source)
		if name == "" || source == "" {
			return nil, fmt.Errorf("inventory: malformed entry %q, want name=source", pair)
		}

		ref, err := parseSource(source)
		if err != nil {
			return nil, fmt.Errorf("inventory: camera %q: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Source: ref})
	}
	return entries, nil
}

func parseSource(source string) (model.SourceRef, error) {
	if strings.Contains(source, "://") {
		return model.NewRTSPRef(source), nil
	}
	index, err := strconv.Atoi(source)
	if err != nil {
		return model.SourceRef{}, fmt.Errorf("not an RTSP URL or a webcam index: %q", source)
	}
	return model.NewWebcamRef(index), nil
}
