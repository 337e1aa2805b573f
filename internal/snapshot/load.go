package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Bundle file names written by the capture harness. One directory per
// page load.
const (
	FileMeta         = "meta.json"
	FileCoverageLCP  = "coverage_lcp.json"
	FileCoverageIdle = "coverage_idle.json"
	FileHAR          = "har.json"
	FilePerformance  = "performance.json"
)

// LoadBundle reads a capture directory into a Bundle. Missing or
// malformed parts are logged and left nil/empty; only a missing
// meta.json is a hard error since without the page URL nothing can be
// attributed.
func LoadBundle(dir string) (*Bundle, error) {
	b := &Bundle{}

	if err := readJSON(filepath.Join(dir, FileMeta), &b.Meta); err != nil {
		return nil, fmt.Errorf("loading bundle meta: %w", err)
	}
	if b.Meta.PageURL == "" {
		return nil, fmt.Errorf("bundle %s: meta.json has no pageUrl", dir)
	}

	var pre, full CoverageSnapshot
	if err := readJSON(filepath.Join(dir, FileCoverageLCP), &pre); err != nil {
		log.Printf("bundle %s: no pre-paint coverage: %v", dir, err)
	} else {
		pre.Point = PointLCP
		b.PrePaint = &pre
	}
	if err := readJSON(filepath.Join(dir, FileCoverageIdle), &full); err != nil {
		log.Printf("bundle %s: no full coverage: %v", dir, err)
	} else {
		full.Point = PointIdle
		b.Full = &full
	}

	var harDoc struct {
		Log struct {
			Entries []HAREntry `json:"entries"`
		} `json:"log"`
	}
	if err := readJSON(filepath.Join(dir, FileHAR), &harDoc); err != nil {
		log.Printf("bundle %s: no HAR: %v", dir, err)
	} else {
		b.HAR = harDoc.Log.Entries
	}

	var perf PerformanceLog
	if err := readJSON(filepath.Join(dir, FilePerformance), &perf); err != nil {
		log.Printf("bundle %s: no performance entries: %v", dir, err)
	} else {
		b.Performance = &perf
	}

	return b, nil
}

// Complete reports whether every part of the bundle loaded. Callers
// use this for the "coverage complete" flag on results; a partial
// bundle still analyzes.
func (b *Bundle) Complete() bool {
	return b.PrePaint != nil && b.Full != nil && len(b.HAR) > 0 && b.Performance != nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteBundle persists a bundle to dir in the same layout LoadBundle
// reads. Nil parts are skipped, not written as empty files.
func WriteBundle(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating bundle dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, FileMeta), b.Meta); err != nil {
		return err
	}
	if b.PrePaint != nil {
		if err := writeJSON(filepath.Join(dir, FileCoverageLCP), b.PrePaint); err != nil {
			return err
		}
	}
	if b.Full != nil {
		if err := writeJSON(filepath.Join(dir, FileCoverageIdle), b.Full); err != nil {
			return err
		}
	}
	if len(b.HAR) > 0 {
		doc := map[string]interface{}{
			"log": map[string]interface{}{"entries": b.HAR},
		}
		if err := writeJSON(filepath.Join(dir, FileHAR), doc); err != nil {
			return err
		}
	}
	if b.Performance != nil {
		if err := writeJSON(filepath.Join(dir, FilePerformance), b.Performance); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
