package coverage

import "sort"

// Severity buckets a file by how much of it never executed.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityOptimize Severity = "optimize"
	SeverityOK       Severity = "ok"
)

// ReportThresholds tune the findings without changing their shape.
// Zero values fall back to the defaults the heuristics were tuned
// with.
type ReportThresholds struct {
	CriticalUnusedPercent  int // file flagged critical above this
	OptimizeUnusedPercent  int // file flagged optimize above this
	BreakdownUnusedPercent int // per-file unit breakdown above this
	HotPathMinCount        int64
	TopHotPaths            int
	MaxUnitsListed         int
}

// DefaultReportThresholds returns the tuned defaults.
func DefaultReportThresholds() ReportThresholds {
	return ReportThresholds{
		CriticalUnusedPercent:  30,
		OptimizeUnusedPercent:  15,
		BreakdownUnusedPercent: 50,
		HotPathMinCount:        10,
		TopHotPaths:            5,
		MaxUnitsListed:         10,
	}
}

func (t ReportThresholds) withDefaults() ReportThresholds {
	d := DefaultReportThresholds()
	if t.CriticalUnusedPercent == 0 {
		t.CriticalUnusedPercent = d.CriticalUnusedPercent
	}
	if t.OptimizeUnusedPercent == 0 {
		t.OptimizeUnusedPercent = d.OptimizeUnusedPercent
	}
	if t.BreakdownUnusedPercent == 0 {
		t.BreakdownUnusedPercent = d.BreakdownUnusedPercent
	}
	if t.HotPathMinCount == 0 {
		t.HotPathMinCount = d.HotPathMinCount
	}
	if t.TopHotPaths == 0 {
		t.TopHotPaths = d.TopHotPaths
	}
	if t.MaxUnitsListed == 0 {
		t.MaxUnitsListed = d.MaxUnitsListed
	}
	return t
}

// FileFinding is one resource's prioritized verdict.
type FileFinding struct {
	URL           string       `json:"url"`
	Kind          ResourceKind `json:"kind"`
	Severity      Severity     `json:"severity"`
	TotalBytes    int64        `json:"totalBytes"`
	UnusedBytes   int64        `json:"unusedBytes"`
	UnusedPercent int          `json:"unusedPercent"`
	PrePercent    int          `json:"preLcpPercent"`
	PostPercent   int          `json:"postLcpPercent"`
}

// HotPath is one frequently executed function, a candidate for
// optimization rather than removal.
type HotPath struct {
	URL            string `json:"url"`
	Unit           string `json:"unit"`
	ExecutionCount int64  `json:"executionCount"`
}

// FileBreakdown lists representative deferred and dead units for one
// file. Overflow counters carry the count beyond the listing cap.
type FileBreakdown struct {
	URL            string   `json:"url"`
	PostPaintUnits []string `json:"postPaintUnits,omitempty"`
	PostPaintMore  int      `json:"postPaintMore,omitempty"`
	UnusedUnits    []string `json:"unusedUnits,omitempty"`
	UnusedMore     int      `json:"unusedMore,omitempty"`
}

// Findings is the reporter's structured output: aggregate waste, the
// per-file severity list, hot paths, and per-file unit breakdowns for
// the worst offenders.
type Findings struct {
	TotalBytes   int64           `json:"totalBytes"`
	UsedBytes    int64           `json:"usedBytes"`
	UnusedBytes  int64           `json:"unusedBytes"`
	WastePercent int             `json:"wastePercent"`
	Files        []FileFinding   `json:"files"`
	HotPaths     []HotPath       `json:"hotPaths,omitempty"`
	Breakdowns   []FileBreakdown `json:"breakdowns,omitempty"`
	Complete     bool            `json:"complete"`
}

// Summarize turns a classification into prioritized findings. It does
// not mutate the classification.
func Summarize(c *Classification, t ReportThresholds) *Findings {
	t = t.withDefaults()
	f := &Findings{Complete: c.Complete}

	var hot []HotPath
	for _, file := range c.Files {
		f.TotalBytes += file.Stats.TotalBytes
		f.UsedBytes += file.Stats.UsedBytes

		ff := FileFinding{
			URL:           file.URL,
			Kind:          file.Kind,
			TotalBytes:    file.Stats.TotalBytes,
			UnusedBytes:   file.Stats.UnusedBytes(),
			UnusedPercent: file.Stats.UnusedPercent(),
			PrePercent:    file.Stats.PrePercent(),
			PostPercent:   file.Stats.PostPercent(),
		}
		switch {
		case ff.UnusedPercent > t.CriticalUnusedPercent:
			ff.Severity = SeverityCritical
		case ff.UnusedPercent > t.OptimizeUnusedPercent:
			ff.Severity = SeverityOptimize
		default:
			ff.Severity = SeverityOK
		}
		f.Files = append(f.Files, ff)

		for _, u := range file.Units {
			if u.ExecutionCount > t.HotPathMinCount {
				hot = append(hot, HotPath{URL: file.URL, Unit: u.Key, ExecutionCount: u.ExecutionCount})
			}
		}

		if ff.UnusedPercent > t.BreakdownUnusedPercent || file.Stats.PostBytes > file.Stats.PreBytes {
			if bd := buildBreakdown(file, t.MaxUnitsListed); bd != nil {
				f.Breakdowns = append(f.Breakdowns, *bd)
			}
		}
	}

	f.UnusedBytes = f.TotalBytes - f.UsedBytes
	f.WastePercent = Percent(f.UnusedBytes, f.TotalBytes)

	// Worst files first.
	sort.SliceStable(f.Files, func(i, j int) bool {
		return f.Files[i].UnusedBytes > f.Files[j].UnusedBytes
	})

	sort.SliceStable(hot, func(i, j int) bool {
		return hot[i].ExecutionCount > hot[j].ExecutionCount
	})
	if len(hot) > t.TopHotPaths {
		hot = hot[:t.TopHotPaths]
	}
	f.HotPaths = hot

	return f
}

func buildBreakdown(file FileClassification, limit int) *FileBreakdown {
	bd := &FileBreakdown{URL: file.URL}
	for _, u := range file.Units {
		switch u.Usage {
		case UsagePostPaint:
			if len(bd.PostPaintUnits) < limit {
				bd.PostPaintUnits = append(bd.PostPaintUnits, u.Key)
			} else {
				bd.PostPaintMore++
			}
		case UsageUnused:
			if len(bd.UnusedUnits) < limit {
				bd.UnusedUnits = append(bd.UnusedUnits, u.Key)
			} else {
				bd.UnusedMore++
			}
		}
	}
	if len(bd.PostPaintUnits) == 0 && len(bd.UnusedUnits) == 0 {
		return nil
	}
	return bd
}
