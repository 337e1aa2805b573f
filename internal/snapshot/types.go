package snapshot

import (
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/profiler"
)

// SnapshotPoint identifies when in the page lifecycle a coverage
// snapshot was captured.
type SnapshotPoint string

const (
	// PointLCP is the snapshot taken at the largest-contentful-paint
	// event ("pre-paint").
	PointLCP SnapshotPoint = "lcp"
	// PointIdle is the snapshot taken at network-idle ("full").
	PointIdle SnapshotPoint = "idle"
)

// ScriptCapture is one JS resource's coverage at a single snapshot
// point. RawCoverage follows the V8 Profiler.takePreciseCoverage shape.
type ScriptCapture struct {
	URL         string                   `json:"url"`
	RawCoverage *profiler.ScriptCoverage `json:"rawScriptCoverage"`
	Text        string                   `json:"text"`
}

// StyleRange is one byte interval of a stylesheet annotated with a
// usage count. Count is synthesized from CSS.ruleUsage (1 if used).
type StyleRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Count int64 `json:"count"`
}

// StyleCapture is one CSS resource's coverage at a single snapshot
// point.
type StyleCapture struct {
	URL    string       `json:"url"`
	Ranges []StyleRange `json:"ranges"`
	Text   string       `json:"text"`
}

// CoverageSnapshot is everything captured at one snapshot point.
type CoverageSnapshot struct {
	Point   SnapshotPoint   `json:"point"`
	Scripts []ScriptCapture `json:"scripts"`
	Styles  []StyleCapture  `json:"styles"`
}

// ScriptByURL returns the script capture for url, or nil.
func (s *CoverageSnapshot) ScriptByURL(url string) *ScriptCapture {
	if s == nil {
		return nil
	}
	for i := range s.Scripts {
		if s.Scripts[i].URL == url {
			return &s.Scripts[i]
		}
	}
	return nil
}

// StyleByURL returns the style capture for url, or nil.
func (s *CoverageSnapshot) StyleByURL(url string) *StyleCapture {
	if s == nil {
		return nil
	}
	for i := range s.Styles {
		if s.Styles[i].URL == url {
			return &s.Styles[i]
		}
	}
	return nil
}

// Rect is a layout rectangle as reported by the Layout Instability API.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeRef identifies a DOM node involved in a layout shift. Selector
// is resolved at capture time; the node may be gone by the time
// attribution runs.
type NodeRef struct {
	Selector  string `json:"selector,omitempty"`
	NodeName  string `json:"nodeName,omitempty"`
	BackendID int64  `json:"backendId,omitempty"`
}

// ShiftSource is one element that moved during a layout-shift entry.
type ShiftSource struct {
	PreviousRect Rect     `json:"previousRect"`
	CurrentRect  Rect     `json:"currentRect"`
	Node         *NodeRef `json:"node,omitempty"`
}

// LayoutShiftEntry is one layout-shift performance entry.
type LayoutShiftEntry struct {
	Value          float64       `json:"value"`
	StartTime      float64       `json:"startTime"`
	HadRecentInput bool          `json:"hadRecentInput"`
	Sources        []ShiftSource `json:"sources"`
}

// TaskAttribution mirrors the longtask attribution shape.
type TaskAttribution struct {
	ContainerType string `json:"containerType,omitempty"`
	ContainerSrc  string `json:"containerSrc,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
}

// LongTaskEntry is one longtask performance entry.
type LongTaskEntry struct {
	StartTime   float64           `json:"startTime"`
	Duration    float64           `json:"duration"`
	Attribution []TaskAttribution `json:"attribution"`
}

// LCPEntry is the largest-contentful-paint performance entry.
type LCPEntry struct {
	StartTime float64 `json:"startTime"`
	Size      float64 `json:"size"`
	URL       string  `json:"url,omitempty"`
	Element   string  `json:"element,omitempty"`
}

// PerformanceLog groups the Performance Observer entries collected
// during one page load.
type PerformanceLog struct {
	LCP       *LCPEntry          `json:"largestContentfulPaint,omitempty"`
	Shifts    []LayoutShiftEntry `json:"layoutShifts"`
	LongTasks []LongTaskEntry    `json:"longTasks"`
}

// HARTimings is the per-phase network timing breakdown of one request.
// Values are milliseconds; -1 means the phase did not apply.
type HARTimings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
	SSL     float64 `json:"ssl"`
}

// NetworkTime sums the phases that actually occurred.
func (t HARTimings) NetworkTime() float64 {
	var total float64
	for _, v := range []float64{t.Blocked, t.DNS, t.Connect, t.Send, t.Wait, t.Receive} {
		if v > 0 {
			total += v
		}
	}
	return total
}

// HARContent describes a response body.
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// HARRequest is the request half of a HAR entry.
type HARRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// HARResponse is the response half of a HAR entry. TransferSize is the
// Chrome extension field carrying on-the-wire bytes.
type HARResponse struct {
	Status       int64      `json:"status"`
	Content      HARContent `json:"content"`
	TransferSize int64      `json:"_transferSize"`
}

// HAREntry is one request/response pair from the capture harness,
// including the Chrome extension fields the attribution engine needs.
type HAREntry struct {
	StartedDateTime string             `json:"startedDateTime"`
	Time            float64            `json:"time"`
	Request         HARRequest         `json:"request"`
	Response        HARResponse        `json:"response"`
	Timings         HARTimings         `json:"timings"`
	Priority        string             `json:"_priority,omitempty"`
	ResourceType    string             `json:"_resourceType,omitempty"`
	Initiator       *network.Initiator `json:"_initiator,omitempty"`
}

// Meta describes one captured page load.
type Meta struct {
	PageURL    string  `json:"pageUrl"`
	CapturedAt string  `json:"capturedAt"`
	UserAgent  string  `json:"userAgent,omitempty"`
	LCPTime    float64 `json:"lcpTime,omitempty"`
}

// Bundle is one page load's worth of raw telemetry: the two coverage
// snapshots, the HAR, and the performance entries. Any part may be
// missing; analyzers degrade per-part instead of failing the bundle.
type Bundle struct {
	Meta        Meta
	PrePaint    *CoverageSnapshot
	Full        *CoverageSnapshot
	HAR         []HAREntry
	Performance *PerformanceLog
}
