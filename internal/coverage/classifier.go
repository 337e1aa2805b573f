package coverage

import (
	"fmt"
	"math"
	"sort"

	"github.com/chromedp/cdproto/profiler"

	"github.com/perflens/perflens/internal/snapshot"
)

// Usage is the three-way verdict for one code unit relative to the
// largest-contentful-paint event.
type Usage string

const (
	UsagePrePaint  Usage = "pre-paint"
	UsagePostPaint Usage = "post-paint"
	UsageUnused    Usage = "unused"
)

// ResourceKind tags a classified file as JS or CSS.
type ResourceKind string

const (
	KindScript ResourceKind = "js"
	KindStyle  ResourceKind = "css"
)

// UnitClass is the verdict for one code unit: a JS function
// ("name:L<line>") or a CSS rule ("selector:L<line>").
type UnitClass struct {
	Key            string `json:"key"`
	Usage          Usage  `json:"usage"`
	ExecutionCount int64  `json:"executionCount"`
}

// FileStats aggregates byte counts for one resource. Used bytes are
// split into pre-paint and post-paint buckets; classification priority
// means the pre bucket wins for bytes executed in both snapshots.
type FileStats struct {
	TotalBytes int64 `json:"totalBytes"`
	UsedBytes  int64 `json:"usedBytes"`
	PreBytes   int64 `json:"preBytes"`
	PostBytes  int64 `json:"postBytes"`
}

// UnusedBytes is the byte count never executed in either snapshot.
func (s FileStats) UnusedBytes() int64 { return s.TotalBytes - s.UsedBytes }

// Percent computes round(part/total*100); zero-total resources report
// 0 rather than NaN.
func Percent(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// UnusedPercent, PrePercent and PostPercent express the buckets as
// rounded percentages of the file total.
func (s FileStats) UnusedPercent() int { return Percent(s.UnusedBytes(), s.TotalBytes) }
func (s FileStats) PrePercent() int    { return Percent(s.PreBytes, s.TotalBytes) }
func (s FileStats) PostPercent() int   { return Percent(s.PostBytes, s.TotalBytes) }

// FileClassification is one resource's verdicts plus its byte
// aggregates.
type FileClassification struct {
	URL   string       `json:"url"`
	Kind  ResourceKind `json:"kind"`
	Units []UnitClass  `json:"units"`
	Stats FileStats    `json:"stats"`
}

// Classification is the full result of one classification pass:
// per-resource unit verdicts and aggregates, in stable URL order.
type Classification struct {
	Files []FileClassification `json:"files"`
	// Complete is false when a resource had to be skipped for
	// missing coverage data.
	Complete bool `json:"complete"`
}

// File returns the classification for url, or nil.
func (c *Classification) File(url string) *FileClassification {
	for i := range c.Files {
		if c.Files[i].URL == url {
			return &c.Files[i]
		}
	}
	return nil
}

// Classify reconciles the pre-paint and full coverage snapshots into
// one verdict per code unit plus per-file byte aggregates. Either
// snapshot may be nil; a resource present in only one snapshot is
// classified against an empty counterpart. A resource with no raw
// coverage at all is skipped and flags the result incomplete.
func Classify(pre, full *snapshot.CoverageSnapshot) *Classification {
	out := &Classification{Complete: true}

	for _, url := range scriptURLs(pre, full) {
		var preCap, fullCap *snapshot.ScriptCapture
		if pre != nil {
			preCap = pre.ScriptByURL(url)
		}
		if full != nil {
			fullCap = full.ScriptByURL(url)
		}
		fc, ok := classifyScript(url, preCap, fullCap)
		if !ok {
			out.Complete = false
			continue
		}
		out.Files = append(out.Files, fc)
	}

	for _, url := range styleURLs(pre, full) {
		var preCap, fullCap *snapshot.StyleCapture
		if pre != nil {
			preCap = pre.StyleByURL(url)
		}
		if full != nil {
			fullCap = full.StyleByURL(url)
		}
		fc, ok := classifyStyle(url, preCap, fullCap)
		if !ok {
			out.Complete = false
			continue
		}
		out.Files = append(out.Files, fc)
	}

	sort.SliceStable(out.Files, func(i, j int) bool {
		return out.Files[i].URL < out.Files[j].URL
	})
	return out
}

func classifyScript(url string, preCap, fullCap *snapshot.ScriptCapture) (FileClassification, bool) {
	var preCov, fullCov *profiler.ScriptCoverage
	text := ""
	if preCap != nil {
		preCov = preCap.RawCoverage
		text = preCap.Text
	}
	if fullCap != nil {
		fullCov = fullCap.RawCoverage
		// Full text is a superset of the pre-paint capture; always
		// prefer it for offset-to-line resolution.
		if fullCap.Text != "" {
			text = fullCap.Text
		}
	}
	if preCov == nil && fullCov == nil {
		return FileClassification{}, false
	}

	merged := MergeScripts(preCov, fullCov, text)

	// Keys executed before paint, from the unmerged pre-paint
	// snapshot. Pre-paint always beats post-paint.
	preExecuted := make(map[string]bool)
	if preCov != nil {
		for _, fn := range preCov.Functions {
			if fn == nil || len(fn.Ranges) == 0 {
				continue
			}
			if functionExecuted(fn) {
				preExecuted[functionKey(fn, text)] = true
			}
		}
	}

	fc := FileClassification{URL: url, Kind: KindScript}
	seen := make(map[string]bool)
	for _, fn := range merged.Functions {
		if fn == nil || len(fn.Ranges) == 0 {
			continue
		}
		key := functionKey(fn, text)
		if seen[key] {
			continue
		}
		seen[key] = true

		uc := UnitClass{Key: key, ExecutionCount: fn.Ranges[0].Count}
		switch {
		case preExecuted[key]:
			uc.Usage = UsagePrePaint
		case functionExecuted(fn):
			uc.Usage = UsagePostPaint
		default:
			uc.Usage = UsageUnused
		}
		fc.Units = append(fc.Units, uc)
	}

	var preRanges []Range
	if preCov != nil {
		preRanges = FlattenScript(preCov)
	}
	var fullRanges []Range
	if fullCov != nil {
		fullRanges = FlattenScript(fullCov)
	}
	fc.Stats = computeStats(preRanges, fullRanges)
	return fc, true
}

func classifyStyle(url string, preCap, fullCap *snapshot.StyleCapture) (FileClassification, bool) {
	if preCap == nil && fullCap == nil {
		return FileClassification{}, false
	}

	text := ""
	var preRanges, fullRanges []Range
	if preCap != nil {
		text = preCap.Text
		preRanges = styleRanges(preCap.Ranges)
	}
	if fullCap != nil {
		if fullCap.Text != "" {
			text = fullCap.Text
		}
		fullRanges = styleRanges(fullCap.Ranges)
	}
	if preRanges == nil && fullRanges == nil && text == "" {
		return FileClassification{}, false
	}

	preExec := MergeRanges(ExecutedOnly(preRanges), nil)
	mergedExec := ExecutedOnly(MergeRanges(preRanges, fullRanges))

	fc := FileClassification{URL: url, Kind: KindStyle}
	for _, rule := range ExtractCSSRules(text) {
		key := fmt.Sprintf("%s:L%d", rule.Selector, LineNumber(text, rule.Start))
		uc := UnitClass{Key: key}
		switch {
		case intersectsAny(rule, preExec):
			uc.Usage = UsagePrePaint
		case intersectsAny(rule, mergedExec):
			uc.Usage = UsagePostPaint
		default:
			uc.Usage = UsageUnused
		}
		fc.Units = append(fc.Units, uc)
	}

	fc.Stats = computeStats(preRanges, fullRanges)
	if fc.Stats.TotalBytes == 0 && text != "" {
		// A stylesheet with no coverage ranges at all still has a
		// knowable size; report it as fully unused.
		fc.Stats.TotalBytes = int64(len(text))
	}
	return fc, true
}

// computeStats builds the per-file byte aggregates from the raw
// pre-paint and full range lists. The pre bucket is the normalized
// executed pre-paint footprint; the post bucket is whatever else was
// executed by idle.
func computeStats(preRanges, fullRanges []Range) FileStats {
	merged := MergeRanges(preRanges, fullRanges)
	stats := FileStats{
		TotalBytes: TotalBytes(merged),
		UsedBytes:  CoveredBytes(merged),
	}
	stats.PreBytes = CoveredBytes(MergeRanges(ExecutedOnly(preRanges), nil))
	if stats.PreBytes > stats.UsedBytes {
		stats.PreBytes = stats.UsedBytes
	}
	stats.PostBytes = stats.UsedBytes - stats.PreBytes
	return stats
}

func functionExecuted(fn *profiler.FunctionCoverage) bool {
	for _, r := range fn.Ranges {
		if r != nil && r.Count > 0 {
			return true
		}
	}
	return false
}

func intersectsAny(rule CSSRule, ranges []Range) bool {
	for _, r := range ranges {
		if rule.Start < r.End && r.Start < rule.End {
			return true
		}
	}
	return false
}

func styleRanges(in []snapshot.StyleRange) []Range {
	out := make([]Range, 0, len(in))
	for _, r := range in {
		out = append(out, Range{Start: r.Start, End: r.End, Count: r.Count})
	}
	return out
}

func scriptURLs(pre, full *snapshot.CoverageSnapshot) []string {
	return unionURLs(
		func() []string {
			if pre == nil {
				return nil
			}
			urls := make([]string, len(pre.Scripts))
			for i := range pre.Scripts {
				urls[i] = pre.Scripts[i].URL
			}
			return urls
		}(),
		func() []string {
			if full == nil {
				return nil
			}
			urls := make([]string, len(full.Scripts))
			for i := range full.Scripts {
				urls[i] = full.Scripts[i].URL
			}
			return urls
		}(),
	)
}

func styleURLs(pre, full *snapshot.CoverageSnapshot) []string {
	return unionURLs(
		func() []string {
			if pre == nil {
				return nil
			}
			urls := make([]string, len(pre.Styles))
			for i := range pre.Styles {
				urls[i] = pre.Styles[i].URL
			}
			return urls
		}(),
		func() []string {
			if full == nil {
				return nil
			}
			urls := make([]string, len(full.Styles))
			for i := range full.Styles {
				urls[i] = full.Styles[i].URL
			}
			return urls
		}(),
	)
}

// unionURLs merges two URL lists preserving first-seen order.
func unionURLs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, u := range a {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, u := range b {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
