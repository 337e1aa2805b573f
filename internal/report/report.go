package report

import (
	"context"
	"time"

	"github.com/perflens/perflens/internal/coverage"
	"github.com/perflens/perflens/internal/shift"
	"github.com/perflens/perflens/internal/snapshot"
	"github.com/perflens/perflens/internal/thirdparty"
	"github.com/perflens/perflens/pkg/events"
)

// Report joins the three analyzers' outputs for one page load. It is
// the structured JSON contract consumed by the HTTP/MCP surfaces and
// the report/LLM layer downstream.
type Report struct {
	SessionID   string    `json:"sessionId"`
	PageURL     string    `json:"pageUrl"`
	CapturedAt  string    `json:"capturedAt,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Complete is false when any input part was missing or any
	// resource had to be skipped; results are still usable.
	Complete bool `json:"complete"`

	Coverage       *coverage.Findings       `json:"coverage,omitempty"`
	CoverageDetail *coverage.Classification `json:"coverageDetail,omitempty"`
	Shifts         *shift.Summary           `json:"shifts,omitempty"`
	ShiftDetail    []shift.EnhancedShift    `json:"shiftDetail,omitempty"`
	ThirdParty     *thirdparty.Analysis     `json:"thirdParty,omitempty"`
}

// Options carries everything Build needs beyond the bundle itself.
type Options struct {
	SessionID  string
	Thresholds coverage.ReportThresholds
	Shift      shift.Thresholds
	Taxonomy   *thirdparty.Taxonomy
	DOM        shift.DOMAccessor // nil for replayed bundles
	Bus        *events.EventBus  // nil disables progress events
}

// Build runs the full attribution pipeline over one bundle. Every
// stage is best-effort: a missing input skips its stage and clears the
// Complete flag, and no stage failure aborts the others.
func Build(ctx context.Context, b *snapshot.Bundle, opts Options) *Report {
	r := &Report{
		SessionID:   opts.SessionID,
		PageURL:     b.Meta.PageURL,
		CapturedAt:  b.Meta.CapturedAt,
		GeneratedAt: time.Now(),
		Complete:    true,
	}

	publish := func(t events.EventType, data map[string]interface{}) {
		if opts.Bus != nil {
			opts.Bus.Publish(events.Event{Type: t, SessionID: opts.SessionID, Data: data})
		}
	}
	publish(events.BundleLoaded, map[string]interface{}{"pageUrl": b.Meta.PageURL})

	if b.PrePaint != nil || b.Full != nil {
		r.CoverageDetail = coverage.Classify(b.PrePaint, b.Full)
		r.Coverage = coverage.Summarize(r.CoverageDetail, opts.Thresholds)
		if !r.CoverageDetail.Complete || b.PrePaint == nil || b.Full == nil {
			r.Complete = false
		}
		publish(events.CoverageClassified, map[string]interface{}{
			"files":        len(r.CoverageDetail.Files),
			"wastePercent": r.Coverage.WastePercent,
		})
	} else {
		r.Complete = false
	}

	if b.Performance != nil {
		attributor := shift.NewAttributor(opts.DOM, opts.Shift)
		r.ShiftDetail = attributor.Attribute(ctx, b.Performance.Shifts)
		r.Shifts = shift.Summarize(r.ShiftDetail)
		publish(events.ShiftsAttributed, map[string]interface{}{
			"totalShifts": r.Shifts.TotalShifts,
			"totalCLS":    r.Shifts.TotalCLS,
		})
	} else {
		r.Complete = false
	}

	if len(b.HAR) > 0 && opts.Taxonomy != nil {
		r.ThirdParty = thirdparty.Analyze(b.HAR, b.Performance, b.Meta.PageURL, opts.Taxonomy)
		publish(events.ThirdPartyAnalyzed, map[string]interface{}{
			"scripts": r.ThirdParty.Summary.ScriptCount,
		})
	} else {
		r.Complete = false
	}

	if r.Complete {
		publish(events.AnalysisCompleted, nil)
	} else {
		publish(events.AnalysisDegraded, nil)
	}
	return r
}
