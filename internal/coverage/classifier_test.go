package coverage

import (
	"testing"

	"github.com/chromedp/cdproto/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflens/perflens/internal/snapshot"
)

const appJS = "function boot() {}\nfunction lazy() {}\nfunction dead() {}\n"

func scriptSnapshot(point snapshot.SnapshotPoint, caps ...snapshot.ScriptCapture) *snapshot.CoverageSnapshot {
	return &snapshot.CoverageSnapshot{Point: point, Scripts: caps}
}

func jsCapture(url, text string, fns ...*profiler.FunctionCoverage) snapshot.ScriptCapture {
	return snapshot.ScriptCapture{
		URL:         url,
		Text:        text,
		RawCoverage: &profiler.ScriptCoverage{URL: url, Functions: fns},
	}
}

func fn(name string, start, end, count int64) *profiler.FunctionCoverage {
	return &profiler.FunctionCoverage{
		FunctionName: name,
		Ranges:       []*profiler.CoverageRange{{StartOffset: start, EndOffset: end, Count: count}},
	}
}

func TestClassifyScriptThreeWay(t *testing.T) {
	url := "https://example.com/app.js"
	pre := scriptSnapshot(snapshot.PointLCP,
		jsCapture(url, appJS,
			fn("boot", 0, 18, 3),
			fn("lazy", 19, 37, 0),
			fn("dead", 38, 56, 0),
		))
	full := scriptSnapshot(snapshot.PointIdle,
		jsCapture(url, appJS,
			fn("boot", 0, 18, 5),
			fn("lazy", 19, 37, 2),
			fn("dead", 38, 56, 0),
		))

	c := Classify(pre, full)
	require.True(t, c.Complete)
	file := c.File(url)
	require.NotNil(t, file)
	require.Len(t, file.Units, 3)

	byKey := map[string]UnitClass{}
	for _, u := range file.Units {
		byKey[u.Key] = u
	}

	assert.Equal(t, UsagePrePaint, byKey["boot:L1"].Usage)
	assert.Equal(t, UsagePostPaint, byKey["lazy:L2"].Usage)
	assert.Equal(t, UsageUnused, byKey["dead:L3"].Usage)

	// merged execution count: 3 pre + 5 full
	assert.Equal(t, int64(8), byKey["boot:L1"].ExecutionCount)
}

func TestClassifyPrePaintBeatsPostPaint(t *testing.T) {
	url := "https://example.com/app.js"
	// executed in both snapshots: pre-paint wins regardless of order
	pre := scriptSnapshot(snapshot.PointLCP, jsCapture(url, appJS, fn("boot", 0, 18, 1)))
	full := scriptSnapshot(snapshot.PointIdle, jsCapture(url, appJS, fn("boot", 0, 18, 100)))

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)
	require.Len(t, file.Units, 1)
	assert.Equal(t, UsagePrePaint, file.Units[0].Usage)
}

func TestClassifyPreCountAloneSufficient(t *testing.T) {
	url := "https://example.com/app.js"
	// count 5 pre-paint, 0 in the full delta: still pre-paint
	pre := scriptSnapshot(snapshot.PointLCP, jsCapture(url, appJS, fn("boot", 0, 18, 5)))
	full := scriptSnapshot(snapshot.PointIdle, jsCapture(url, appJS, fn("boot", 0, 18, 0)))

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)
	assert.Equal(t, UsagePrePaint, file.Units[0].Usage)
}

func TestClassifyResourceOnlyInFullSnapshot(t *testing.T) {
	url := "https://example.com/late.js"
	full := scriptSnapshot(snapshot.PointIdle, jsCapture(url, "function later() {}\n", fn("later", 0, 19, 1)))

	c := Classify(nil, full)
	file := c.File(url)
	require.NotNil(t, file)
	require.Len(t, file.Units, 1)
	assert.Equal(t, UsagePostPaint, file.Units[0].Usage)
}

func TestClassifyResourceOnlyInPrePaintCarriesForward(t *testing.T) {
	url := "https://example.com/removed.js"
	pre := scriptSnapshot(snapshot.PointLCP, jsCapture(url, "function gone() {}\n", fn("gone", 0, 18, 2)))
	full := scriptSnapshot(snapshot.PointIdle)

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)
	require.Len(t, file.Units, 1)
	assert.Equal(t, UsagePrePaint, file.Units[0].Usage)
}

func TestClassifySkipsResourceWithoutCoverage(t *testing.T) {
	full := scriptSnapshot(snapshot.PointIdle, snapshot.ScriptCapture{
		URL:  "https://example.com/broken.js",
		Text: "whatever",
	})

	c := Classify(nil, full)
	assert.False(t, c.Complete)
	assert.Nil(t, c.File("https://example.com/broken.js"))
}

func TestClassifyByteAggregates(t *testing.T) {
	url := "https://example.com/app.js"
	pre := scriptSnapshot(snapshot.PointLCP,
		jsCapture(url, appJS, fn("boot", 0, 100, 1)))
	full := scriptSnapshot(snapshot.PointIdle,
		jsCapture(url, appJS,
			fn("boot", 0, 100, 1),
			fn("lazy", 100, 150, 2),
			fn("dead", 150, 200, 0),
		))

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)

	assert.Equal(t, int64(200), file.Stats.TotalBytes)
	assert.Equal(t, int64(150), file.Stats.UsedBytes)
	assert.Equal(t, int64(100), file.Stats.PreBytes)
	assert.Equal(t, int64(50), file.Stats.PostBytes)
	assert.Equal(t, int64(50), file.Stats.UnusedBytes())

	// percentages add to 100 within rounding
	sum := file.Stats.PrePercent() + file.Stats.PostPercent() + file.Stats.UnusedPercent()
	assert.InDelta(t, 100, sum, 1)
}

const siteCSS = `.hero { color: red; }
.modal { display: none; }
.never { border: 0; }
`

func styleSnapshot(point snapshot.SnapshotPoint, caps ...snapshot.StyleCapture) *snapshot.CoverageSnapshot {
	return &snapshot.CoverageSnapshot{Point: point, Styles: caps}
}

func TestClassifyStylesThreeWay(t *testing.T) {
	url := "https://example.com/site.css"
	// rule offsets: .hero 0-21, .modal 22-47, .never 48-69
	pre := styleSnapshot(snapshot.PointLCP, snapshot.StyleCapture{
		URL:  url,
		Text: siteCSS,
		Ranges: []snapshot.StyleRange{
			{Start: 0, End: 21, Count: 1},
			{Start: 22, End: 47, Count: 0},
			{Start: 48, End: 69, Count: 0},
		},
	})
	full := styleSnapshot(snapshot.PointIdle, snapshot.StyleCapture{
		URL:  url,
		Text: siteCSS,
		Ranges: []snapshot.StyleRange{
			{Start: 0, End: 21, Count: 1},
			{Start: 22, End: 47, Count: 1},
			{Start: 48, End: 69, Count: 0},
		},
	})

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)
	require.Len(t, file.Units, 3)

	byKey := map[string]Usage{}
	for _, u := range file.Units {
		byKey[u.Key] = u.Usage
	}
	assert.Equal(t, UsagePrePaint, byKey[".hero:L1"])
	assert.Equal(t, UsagePostPaint, byKey[".modal:L2"])
	assert.Equal(t, UsageUnused, byKey[".never:L3"])
}

func TestClassifyFullyUnusedStylesheet(t *testing.T) {
	url := "https://example.com/unused.css"
	cap := snapshot.StyleCapture{
		URL:  url,
		Text: siteCSS,
		Ranges: []snapshot.StyleRange{
			{Start: 0, End: 21, Count: 0},
			{Start: 22, End: 47, Count: 0},
			{Start: 48, End: 69, Count: 0},
		},
	}
	pre := styleSnapshot(snapshot.PointLCP, cap)
	full := styleSnapshot(snapshot.PointIdle, cap)

	c := Classify(pre, full)
	file := c.File(url)
	require.NotNil(t, file)

	assert.Equal(t, 100, file.Stats.UnusedPercent())
	assert.Equal(t, 0, file.Stats.PrePercent())
	assert.Equal(t, 0, file.Stats.PostPercent())
	for _, u := range file.Units {
		assert.Equal(t, UsageUnused, u.Usage)
	}
}

func TestPercentZeroTotal(t *testing.T) {
	assert.Equal(t, 0, Percent(50, 0))
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 50, Percent(1, 2))
}
