package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflens/perflens/internal/snapshot"
)

type fakeController struct {
	navigated   string
	signals     []Signal
	failSignals map[Signal]error
	failFull    bool
}

func (f *fakeController) Navigate(ctx context.Context, url string) error {
	f.navigated = url
	return nil
}

func (f *fakeController) WaitForSignal(ctx context.Context, sig Signal) error {
	f.signals = append(f.signals, sig)
	return f.failSignals[sig]
}

func (f *fakeController) CollectCoverage(ctx context.Context, point snapshot.SnapshotPoint) (*snapshot.CoverageSnapshot, error) {
	if point == snapshot.PointIdle && f.failFull {
		return nil, errors.New("profiler detached")
	}
	return &snapshot.CoverageSnapshot{Point: point}, nil
}

func (f *fakeController) CollectHAR(ctx context.Context) ([]snapshot.HAREntry, error) {
	return []snapshot.HAREntry{{Request: snapshot.HARRequest{URL: f.navigated}}}, nil
}

func (f *fakeController) CollectPerformanceEntries(ctx context.Context) (*snapshot.PerformanceLog, error) {
	return &snapshot.PerformanceLog{LCP: &snapshot.LCPEntry{StartTime: 1234}}, nil
}

func TestCaptureFull(t *testing.T) {
	fc := &fakeController{failSignals: map[Signal]error{}}

	b, err := Capture(context.Background(), fc, "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", fc.navigated)
	assert.Equal(t, []Signal{SignalLCP, SignalNetworkIdle}, fc.signals)
	require.NotNil(t, b.PrePaint)
	assert.Equal(t, snapshot.PointLCP, b.PrePaint.Point)
	require.NotNil(t, b.Full)
	assert.Len(t, b.HAR, 1)
	assert.InDelta(t, 1234, b.Meta.LCPTime, 1e-9)
	assert.NotEmpty(t, b.Meta.CapturedAt)
	assert.True(t, b.Complete())
}

func TestCaptureMissedLCPDegrades(t *testing.T) {
	fc := &fakeController{failSignals: map[Signal]error{
		SignalLCP: errors.New("signal timeout"),
	}}

	b, err := Capture(context.Background(), fc, "https://example.com")
	require.NoError(t, err)

	assert.Nil(t, b.PrePaint)
	assert.NotNil(t, b.Full)
	assert.False(t, b.Complete())
}

func TestCaptureNoIdleFails(t *testing.T) {
	fc := &fakeController{failSignals: map[Signal]error{
		SignalNetworkIdle: errors.New("network never settled"),
	}}

	_, err := Capture(context.Background(), fc, "https://example.com")
	require.Error(t, err)
}

func TestCaptureCollectFailureDegrades(t *testing.T) {
	fc := &fakeController{failSignals: map[Signal]error{}, failFull: true}

	b, err := Capture(context.Background(), fc, "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, b.Full)
	assert.NotNil(t, b.PrePaint)
}
