package controller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/perflens/perflens/internal/snapshot"
)

// Signal is a page lifecycle milestone the harness can wait on.
type Signal string

const (
	SignalLoad        Signal = "load"
	SignalLCP         Signal = "largest-contentful-paint"
	SignalNetworkIdle Signal = "network-idle"
)

// PageController is the external browser harness: navigation,
// lifecycle signals, and raw telemetry collection. The analysis core
// never talks to a browser directly; everything crosses this
// interface.
type PageController interface {
	Navigate(ctx context.Context, url string) error
	WaitForSignal(ctx context.Context, sig Signal) error
	CollectCoverage(ctx context.Context, point snapshot.SnapshotPoint) (*snapshot.CoverageSnapshot, error)
	CollectHAR(ctx context.Context) ([]snapshot.HAREntry, error)
	CollectPerformanceEntries(ctx context.Context) (*snapshot.PerformanceLog, error)
}

// Capture drives one instrumented page load: navigate, snapshot
// coverage at LCP, settle to network idle, then collect everything.
// Collection failures after a successful navigation degrade the bundle
// instead of failing it; the analyzers are built for partial input.
func Capture(ctx context.Context, pc PageController, url string) (*snapshot.Bundle, error) {
	if err := pc.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	b := &snapshot.Bundle{Meta: snapshot.Meta{
		PageURL:    url,
		CapturedAt: time.Now().UTC().Format(time.RFC3339),
	}}

	if err := pc.WaitForSignal(ctx, SignalLCP); err != nil {
		log.Printf("capture %s: no LCP signal: %v", url, err)
	} else if pre, err := pc.CollectCoverage(ctx, snapshot.PointLCP); err != nil {
		log.Printf("capture %s: pre-paint coverage failed: %v", url, err)
	} else {
		b.PrePaint = pre
	}

	if err := pc.WaitForSignal(ctx, SignalNetworkIdle); err != nil {
		return nil, fmt.Errorf("waiting for network idle: %w", err)
	}

	if full, err := pc.CollectCoverage(ctx, snapshot.PointIdle); err != nil {
		log.Printf("capture %s: full coverage failed: %v", url, err)
	} else {
		b.Full = full
	}
	if har, err := pc.CollectHAR(ctx); err != nil {
		log.Printf("capture %s: HAR collection failed: %v", url, err)
	} else {
		b.HAR = har
	}
	if perf, err := pc.CollectPerformanceEntries(ctx); err != nil {
		log.Printf("capture %s: performance entries failed: %v", url, err)
	} else {
		b.Performance = perf
		if perf.LCP != nil {
			b.Meta.LCPTime = perf.LCP.StartTime
		}
	}

	return b, nil
}
