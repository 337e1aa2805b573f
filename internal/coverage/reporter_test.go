package coverage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileClass(url string, kind ResourceKind, stats FileStats, units ...UnitClass) FileClassification {
	return FileClassification{URL: url, Kind: kind, Units: units, Stats: stats}
}

func TestSummarizeSeverityThresholds(t *testing.T) {
	c := &Classification{
		Complete: true,
		Files: []FileClassification{
			fileClass("https://a.com/critical.js", KindScript,
				FileStats{TotalBytes: 1000, UsedBytes: 500, PreBytes: 500}),
			fileClass("https://a.com/optimize.js", KindScript,
				FileStats{TotalBytes: 1000, UsedBytes: 800, PreBytes: 800}),
			fileClass("https://a.com/fine.js", KindScript,
				FileStats{TotalBytes: 1000, UsedBytes: 950, PreBytes: 950}),
		},
	}

	f := Summarize(c, ReportThresholds{})
	require.Len(t, f.Files, 3)

	byURL := map[string]FileFinding{}
	for _, ff := range f.Files {
		byURL[ff.URL] = ff
	}
	assert.Equal(t, SeverityCritical, byURL["https://a.com/critical.js"].Severity)
	assert.Equal(t, SeverityOptimize, byURL["https://a.com/optimize.js"].Severity)
	assert.Equal(t, SeverityOK, byURL["https://a.com/fine.js"].Severity)

	// worst files first
	assert.Equal(t, "https://a.com/critical.js", f.Files[0].URL)

	assert.Equal(t, int64(3000), f.TotalBytes)
	assert.Equal(t, int64(750), f.UnusedBytes)
	assert.Equal(t, 25, f.WastePercent)
	assert.True(t, f.Complete)
}

func TestSummarizeHotPaths(t *testing.T) {
	var units []UnitClass
	for i := 0; i < 8; i++ {
		units = append(units, UnitClass{
			Key:            fmt.Sprintf("fn%d:L%d", i, i+1),
			Usage:          UsagePrePaint,
			ExecutionCount: int64(i * 20),
		})
	}
	c := &Classification{Complete: true, Files: []FileClassification{
		fileClass("https://a.com/hot.js", KindScript, FileStats{TotalBytes: 100, UsedBytes: 100, PreBytes: 100}, units...),
	}}

	f := Summarize(c, ReportThresholds{})

	// top 5 only, executed more than 10 times, ranked descending
	require.Len(t, f.HotPaths, 5)
	assert.Equal(t, "fn7:L8", f.HotPaths[0].Unit)
	assert.Equal(t, int64(140), f.HotPaths[0].ExecutionCount)
	for i := 1; i < len(f.HotPaths); i++ {
		assert.GreaterOrEqual(t, f.HotPaths[i-1].ExecutionCount, f.HotPaths[i].ExecutionCount)
	}
}

func TestSummarizeBreakdownOverflow(t *testing.T) {
	var units []UnitClass
	for i := 0; i < 14; i++ {
		units = append(units, UnitClass{Key: fmt.Sprintf("dead%d:L%d", i, i+1), Usage: UsageUnused})
	}
	units = append(units, UnitClass{Key: "late:L99", Usage: UsagePostPaint})

	c := &Classification{Complete: true, Files: []FileClassification{
		fileClass("https://a.com/waste.js", KindScript,
			FileStats{TotalBytes: 1000, UsedBytes: 100, PreBytes: 50, PostBytes: 50}, units...),
	}}

	f := Summarize(c, ReportThresholds{})
	require.Len(t, f.Breakdowns, 1)

	bd := f.Breakdowns[0]
	assert.Len(t, bd.UnusedUnits, 10)
	assert.Equal(t, 4, bd.UnusedMore)
	assert.Equal(t, []string{"late:L99"}, bd.PostPaintUnits)
	assert.Zero(t, bd.PostPaintMore)
}

func TestSummarizeBreakdownForPostHeavyFile(t *testing.T) {
	// below the unused threshold but post-paint bytes exceed pre-paint
	c := &Classification{Complete: true, Files: []FileClassification{
		fileClass("https://a.com/lazyheavy.js", KindScript,
			FileStats{TotalBytes: 1000, UsedBytes: 950, PreBytes: 200, PostBytes: 750},
			UnitClass{Key: "defer:L1", Usage: UsagePostPaint}),
	}}

	f := Summarize(c, ReportThresholds{})
	require.Len(t, f.Breakdowns, 1)
	assert.Equal(t, []string{"defer:L1"}, f.Breakdowns[0].PostPaintUnits)
}

func TestSummarizeEmptyClassification(t *testing.T) {
	f := Summarize(&Classification{Complete: true}, ReportThresholds{})
	assert.Zero(t, f.TotalBytes)
	assert.Zero(t, f.WastePercent)
	assert.Empty(t, f.Files)
	assert.Empty(t, f.HotPaths)
}

func TestSummarizeCarriesIncompleteFlag(t *testing.T) {
	f := Summarize(&Classification{Complete: false}, ReportThresholds{})
	assert.False(t, f.Complete)
}
