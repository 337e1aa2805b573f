package coverage

import (
	"fmt"
	"sort"

	"github.com/chromedp/cdproto/profiler"
)

// Range is one byte interval of a resource annotated with an
// execution count.
type Range struct {
	Start int64
	End   int64
	Count int64
}

// Len returns the byte size of the range.
func (r Range) Len() int64 { return r.End - r.Start }

// Contains reports whether offset falls inside the range.
func (r Range) Contains(offset int64) bool {
	return offset >= r.Start && offset < r.End
}

// MergeRanges merges the pre-paint and full range lists for one
// resource into a normalized list: sorted by start, overlapping
// intervals coalesced, counts summed on coalesce. Touching-but-not-
// overlapping intervals stay separate so an executed range never
// swallows a dead neighbor's bytes. Zero-length and inverted ranges
// are dropped. Merging is idempotent under re-merge.
func MergeRanges(pre, full []Range) []Range {
	all := make([]Range, 0, len(pre)+len(full))
	for _, r := range pre {
		if r.End > r.Start {
			all = append(all, r)
		}
	}
	for _, r := range full {
		if r.End > r.Start {
			all = append(all, r)
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End < all[j].End
	})

	merged := make([]Range, 0, len(all))
	cur := all[0]
	for _, next := range all[1:] {
		if next.Start < cur.End {
			if next.End > cur.End {
				cur.End = next.End
			}
			cur.Count += next.Count
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)
	return merged
}

// CoveredBytes sums the byte sizes of ranges whose count is positive.
// Call it on a normalized list; overlapping input would double-count.
func CoveredBytes(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		if r.Count > 0 {
			total += r.Len()
		}
	}
	return total
}

// TotalBytes sums the byte sizes of all ranges regardless of count.
func TotalBytes(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

// ExecutedOnly filters a range list down to ranges with a positive
// count.
func ExecutedOnly(ranges []Range) []Range {
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Count > 0 {
			out = append(out, r)
		}
	}
	return out
}

// functionKey identifies a function across the two snapshots: name
// plus the line of its first range, resolved against the shared source
// text. Anonymous functions get a stable placeholder name.
func functionKey(fn *profiler.FunctionCoverage, text string) string {
	name := fn.FunctionName
	if name == "" {
		name = "(anonymous)"
	}
	line := int64(1)
	if len(fn.Ranges) > 0 {
		line = LineNumber(text, fn.Ranges[0].StartOffset)
	}
	return fmt.Sprintf("%s:L%d", name, line)
}

// MergeScripts merges the pre-paint and full script coverage for one
// JS resource. Functions present in both inputs (matched by name plus
// line of first range) have their range counts summed pairwise by
// index; functions present in only one input carry through unchanged.
// Either input may be nil. The text must be the source the offsets
// were sampled against (the full snapshot's text).
func MergeScripts(pre, full *profiler.ScriptCoverage, text string) *profiler.ScriptCoverage {
	switch {
	case pre == nil && full == nil:
		return nil
	case pre == nil:
		return cloneScript(full)
	case full == nil:
		return cloneScript(pre)
	}

	out := &profiler.ScriptCoverage{
		ScriptID: full.ScriptID,
		URL:      full.URL,
	}

	byKey := make(map[string]int)
	for _, fn := range pre.Functions {
		if fn == nil || len(fn.Ranges) == 0 {
			continue
		}
		copied := cloneFunction(fn)
		byKey[functionKey(fn, text)] = len(out.Functions)
		out.Functions = append(out.Functions, copied)
	}

	for _, fn := range full.Functions {
		if fn == nil || len(fn.Ranges) == 0 {
			continue
		}
		idx, seen := byKey[functionKey(fn, text)]
		if !seen {
			out.Functions = append(out.Functions, cloneFunction(fn))
			continue
		}
		existing := out.Functions[idx]
		for i, r := range fn.Ranges {
			if r == nil || r.EndOffset <= r.StartOffset {
				continue
			}
			if i < len(existing.Ranges) {
				existing.Ranges[i].Count += r.Count
				if r.EndOffset > existing.Ranges[i].EndOffset {
					existing.Ranges[i].EndOffset = r.EndOffset
				}
			} else {
				existing.Ranges = append(existing.Ranges, &profiler.CoverageRange{
					StartOffset: r.StartOffset,
					EndOffset:   r.EndOffset,
					Count:       r.Count,
				})
			}
		}
	}

	return out
}

// FlattenScript collapses every function range of a script coverage
// into one flat range list, dropping invalid intervals.
func FlattenScript(sc *profiler.ScriptCoverage) []Range {
	if sc == nil {
		return nil
	}
	var out []Range
	for _, fn := range sc.Functions {
		if fn == nil {
			continue
		}
		for _, r := range fn.Ranges {
			if r == nil || r.EndOffset <= r.StartOffset {
				continue
			}
			out = append(out, Range{Start: r.StartOffset, End: r.EndOffset, Count: r.Count})
		}
	}
	return out
}

func cloneScript(sc *profiler.ScriptCoverage) *profiler.ScriptCoverage {
	out := &profiler.ScriptCoverage{ScriptID: sc.ScriptID, URL: sc.URL}
	for _, fn := range sc.Functions {
		if fn == nil || len(fn.Ranges) == 0 {
			continue
		}
		out.Functions = append(out.Functions, cloneFunction(fn))
	}
	return out
}

func cloneFunction(fn *profiler.FunctionCoverage) *profiler.FunctionCoverage {
	out := &profiler.FunctionCoverage{
		FunctionName:    fn.FunctionName,
		IsBlockCoverage: fn.IsBlockCoverage,
	}
	for _, r := range fn.Ranges {
		if r == nil || r.EndOffset <= r.StartOffset {
			continue
		}
		out.Ranges = append(out.Ranges, &profiler.CoverageRange{
			StartOffset: r.StartOffset,
			EndOffset:   r.EndOffset,
			Count:       r.Count,
		})
	}
	return out
}
