package shift

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/perflens/perflens/internal/snapshot"
)

// CauseType classifies why an element moved.
type CauseType string

const (
	CauseFontSwap         CauseType = "font-swap"
	CauseContentInsertion CauseType = "content-insertion"
	CauseUnsizedMedia     CauseType = "unsized-media"
	CauseAnimation        CauseType = "animation"
	CauseUnknown          CauseType = "unknown"
)

// Cause carries the classification plus the fixed remediation hint and
// the CSS property downstream tooling searches stylesheets for.
type Cause struct {
	Type           CauseType `json:"type"`
	Recommendation string    `json:"recommendation"`
	CSSProperty    string    `json:"cssProperty,omitempty"`
}

// Delta is the rectangle movement between a source's previous and
// current position.
type Delta struct {
	Width  float64 `json:"dw"`
	Height float64 `json:"dh"`
	Top    float64 `json:"dtop"`
	Left   float64 `json:"dleft"`
}

// Thresholds tune the cause heuristics. The values are empirical, not
// derived; the branch order is fixed and first-match-wins.
type Thresholds struct {
	FontSwapHeight     float64 // |dh| above this with stable width
	FontSwapWidthMax   float64
	InsertionTop       float64 // pushed down more than this with stable height
	InsertionHeightMax float64
	MediaDelta         float64 // |dw| or |dh| above this
	AnimationLeft      float64 // |dleft| above this, or mid-band |dtop|
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FontSwapHeight:     5,
		FontSwapWidthMax:   2,
		InsertionTop:       10,
		InsertionHeightMax: 5,
		MediaDelta:         10,
		AnimationLeft:      5,
	}
}

// ComputeDelta derives the movement between two rects.
func ComputeDelta(prev, cur snapshot.Rect) Delta {
	return Delta{
		Width:  cur.Width - prev.Width,
		Height: cur.Height - prev.Height,
		Top:    cur.Y - prev.Y,
		Left:   cur.X - prev.X,
	}
}

// ClassifyCause maps a rectangle delta to a cause. It is a pure
// function of the delta and thresholds: same input, same verdict,
// independent of call order. Branches are evaluated in fixed order and
// the first match wins.
func ClassifyCause(d Delta, t Thresholds) Cause {
	absW, absH := math.Abs(d.Width), math.Abs(d.Height)
	absTop, absLeft := math.Abs(d.Top), math.Abs(d.Left)

	switch {
	case absH > t.FontSwapHeight && absW < t.FontSwapWidthMax:
		return Cause{
			Type:           CauseFontSwap,
			Recommendation: "use font-display: optional or size-adjusted fallback fonts to stabilize text height",
			CSSProperty:    "font-display",
		}
	case d.Top > t.InsertionTop && absH < t.InsertionHeightMax:
		return Cause{
			Type:           CauseContentInsertion,
			Recommendation: "reserve space for late-arriving content (ads, banners, embeds) above this element",
			CSSProperty:    "min-height",
		}
	case absW > t.MediaDelta || absH > t.MediaDelta:
		return Cause{
			Type:           CauseUnsizedMedia,
			Recommendation: "set explicit width/height or aspect-ratio on images and embeds",
			CSSProperty:    "aspect-ratio",
		}
	case absLeft > t.AnimationLeft || (absTop > t.AnimationLeft && absTop < t.InsertionTop):
		return Cause{
			Type:           CauseAnimation,
			Recommendation: "animate with transform instead of layout properties",
			CSSProperty:    "transform",
		}
	default:
		return Cause{
			Type:           CauseUnknown,
			Recommendation: "inspect the element's lifecycle around this timestamp",
		}
	}
}

// StyleSheetRef points at the stylesheet and rule believed responsible
// for a source's geometry.
type StyleSheetRef struct {
	Href     string `json:"href,omitempty"`
	Selector string `json:"selector,omitempty"`
	Inline   bool   `json:"inline,omitempty"`
}

// DOMAccessor is the attributor's window into the live page, backed by
// the external page controller. Implementations run inside the
// browser's evaluation context; errors and timeouts are per-call.
type DOMAccessor interface {
	// ResolveNode finds the selector for a shift source's node, by
	// stored reference if the node is still attached, else by a
	// point-lookup at the rectangle center.
	ResolveNode(ctx context.Context, src snapshot.ShiftSource) (string, error)
	// StyleSheetFor scans accessible stylesheets for a rule matching
	// the selector. Cross-origin sheets are skipped, not errors.
	StyleSheetFor(ctx context.Context, selector string) (*StyleSheetRef, error)
}

// AttributedSource is one shifted element with its resolved identity
// and classified cause.
type AttributedSource struct {
	Selector     string         `json:"selector,omitempty"`
	PreviousRect snapshot.Rect  `json:"previousRect"`
	CurrentRect  snapshot.Rect  `json:"currentRect"`
	Delta        Delta          `json:"delta"`
	Cause        Cause          `json:"cause"`
	StyleSheet   *StyleSheetRef `json:"styleSheet,omitempty"`
}

// EnhancedShift is one layout-shift event with all resolvable sources
// attributed. Cause is the event-level verdict, taken from the source
// with the largest shift footprint.
type EnhancedShift struct {
	Value          float64            `json:"value"`
	StartTime      float64            `json:"startTime"`
	HadRecentInput bool               `json:"hadRecentInput"`
	Cause          Cause              `json:"cause"`
	Sources        []AttributedSource `json:"sources"`
}

// Attributor resolves shift sources against the live DOM and classifies
// their causes.
type Attributor struct {
	dom              DOMAccessor
	thresholds       Thresholds
	stylesheetBudget time.Duration
}

// NewAttributor builds an attributor. dom may be nil when the page is
// gone (replayed bundles); attribution then runs on geometry alone.
func NewAttributor(dom DOMAccessor, t Thresholds) *Attributor {
	return &Attributor{
		dom:              dom,
		thresholds:       t,
		stylesheetBudget: time.Second,
	}
}

// Attribute enhances every layout-shift event. Per-source failures
// drop that source; nothing here aborts the batch.
func (a *Attributor) Attribute(ctx context.Context, events []snapshot.LayoutShiftEntry) []EnhancedShift {
	out := make([]EnhancedShift, 0, len(events))
	for _, ev := range events {
		es := EnhancedShift{
			Value:          ev.Value,
			StartTime:      ev.StartTime,
			HadRecentInput: ev.HadRecentInput,
			Cause:          Cause{Type: CauseUnknown},
		}

		var biggest float64 = -1
		for _, src := range ev.Sources {
			attributed, err := a.attributeSource(ctx, src)
			if err != nil {
				log.Printf("shift attribution: dropping source at t=%.0fms: %v", ev.StartTime, err)
				continue
			}
			es.Sources = append(es.Sources, attributed)

			if footprint := rectArea(src.CurrentRect); footprint > biggest {
				biggest = footprint
				es.Cause = attributed.Cause
			}
		}
		out = append(out, es)
	}
	return out
}

func (a *Attributor) attributeSource(ctx context.Context, src snapshot.ShiftSource) (AttributedSource, error) {
	delta := ComputeDelta(src.PreviousRect, src.CurrentRect)
	attributed := AttributedSource{
		PreviousRect: src.PreviousRect,
		CurrentRect:  src.CurrentRect,
		Delta:        delta,
		Cause:        ClassifyCause(delta, a.thresholds),
	}

	if src.Node != nil {
		attributed.Selector = src.Node.Selector
	}

	if a.dom == nil {
		return attributed, nil
	}

	selector, err := a.dom.ResolveNode(ctx, src)
	if err != nil {
		if attributed.Selector == "" {
			return AttributedSource{}, fmt.Errorf("node unresolvable: %w", err)
		}
		// keep the capture-time selector, skip stylesheet lookup
		return attributed, nil
	}
	attributed.Selector = selector

	// Stylesheet scanning is O(sheets x rules) and can hang on
	// pathological pages, so it races a fixed budget. A timeout means
	// "no stylesheet found", never an error.
	sheetCtx, cancel := context.WithTimeout(ctx, a.stylesheetBudget)
	defer cancel()
	if ref, err := a.dom.StyleSheetFor(sheetCtx, selector); err == nil && ref != nil {
		attributed.StyleSheet = ref
	}

	return attributed, nil
}

func rectArea(r snapshot.Rect) float64 {
	return math.Abs(r.Width * r.Height)
}

// TypeStats aggregates one cause type across a page load.
type TypeStats struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Summary condenses attributed shifts for reporting.
type Summary struct {
	TotalShifts int                     `json:"totalShifts"`
	TotalCLS    float64                 `json:"totalCLS"`
	ByType      map[CauseType]TypeStats `json:"byType"`
	TopIssues   []EnhancedShift         `json:"topIssues"`
}

// Summarize groups attributed shifts by cause and surfaces the worst
// offenders (top 5 by value).
func Summarize(shifts []EnhancedShift) *Summary {
	s := &Summary{ByType: make(map[CauseType]TypeStats)}
	for _, es := range shifts {
		s.TotalShifts++
		s.TotalCLS += es.Value
		ts := s.ByType[es.Cause.Type]
		ts.Count++
		ts.Value += es.Value
		s.ByType[es.Cause.Type] = ts
	}

	top := make([]EnhancedShift, len(shifts))
	copy(top, shifts)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Value > top[j].Value })
	if len(top) > 5 {
		top = top[:5]
	}
	s.TopIssues = top
	return s
}
