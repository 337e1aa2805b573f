package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/perflens/perflens/internal/shift"
	"github.com/perflens/perflens/internal/snapshot"
)

// wire messages: a thin request/response protocol over one websocket.
type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wireError) Error() string {
	return fmt.Sprintf("harness error %d: %s", e.Code, e.Message)
}

// Client is a PageController talking to a capture harness over a
// websocket. It also satisfies shift.DOMAccessor so layout-shift
// attribution can query the live page through the same connection.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	mu      sync.Mutex // guards writes and pending
	pending map[int64]chan response

	closeOnce sync.Once
	closed    chan struct{}
}

var _ PageController = (*Client)(nil)
var _ shift.DOMAccessor = (*Client)(nil)

// Dial connects to a harness endpoint (ws://host:port/session).
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing harness %s: %w", endpoint, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan response),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the connection; in-flight calls fail.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			select {
			case <-c.closed:
			default:
				log.Printf("harness connection lost: %v", err)
				c.Close()
			}
			c.failPending()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call performs one request/response round trip, honoring ctx for
// cancellation and timeouts. out may be nil for calls with no result
// payload.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := c.nextID.Add(1)

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		raw = data
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	err := c.conn.WriteJSON(request{ID: id, Method: method, Params: raw})
	c.mu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: connection closed", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("%s: connection closed", method)
	}
}

func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.call(ctx, "page.navigate", map[string]string{"url": url}, nil)
}

func (c *Client) WaitForSignal(ctx context.Context, sig Signal) error {
	return c.call(ctx, "page.waitForSignal", map[string]string{"signal": string(sig)}, nil)
}

func (c *Client) CollectCoverage(ctx context.Context, point snapshot.SnapshotPoint) (*snapshot.CoverageSnapshot, error) {
	var snap snapshot.CoverageSnapshot
	if err := c.call(ctx, "collect.coverage", map[string]string{"point": string(point)}, &snap); err != nil {
		return nil, err
	}
	snap.Point = point
	return &snap, nil
}

func (c *Client) CollectHAR(ctx context.Context) ([]snapshot.HAREntry, error) {
	var result struct {
		Entries []snapshot.HAREntry `json:"entries"`
	}
	if err := c.call(ctx, "collect.har", nil, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

func (c *Client) CollectPerformanceEntries(ctx context.Context) (*snapshot.PerformanceLog, error) {
	var perf snapshot.PerformanceLog
	if err := c.call(ctx, "collect.performance", nil, &perf); err != nil {
		return nil, err
	}
	return &perf, nil
}

// ResolveNode implements shift.DOMAccessor: find the selector for a
// shift source, by stored node reference when the node is still
// attached, else by point-lookup at the current rect's center.
func (c *Client) ResolveNode(ctx context.Context, src snapshot.ShiftSource) (string, error) {
	params := map[string]interface{}{
		"x": src.CurrentRect.X + src.CurrentRect.Width/2,
		"y": src.CurrentRect.Y + src.CurrentRect.Height/2,
	}
	if src.Node != nil {
		params["backendId"] = src.Node.BackendID
	}
	var result struct {
		Selector string `json:"selector"`
	}
	if err := c.call(ctx, "dom.resolveNode", params, &result); err != nil {
		return "", err
	}
	if result.Selector == "" {
		return "", fmt.Errorf("node not found at rect center")
	}
	return result.Selector, nil
}

// StyleSheetFor implements shift.DOMAccessor. The harness scans only
// same-origin stylesheets; cross-origin ones throw in the page context
// and are skipped there.
func (c *Client) StyleSheetFor(ctx context.Context, selector string) (*shift.StyleSheetRef, error) {
	var result struct {
		Found    bool   `json:"found"`
		Href     string `json:"href"`
		Selector string `json:"selector"`
		Inline   bool   `json:"inline"`
	}
	if err := c.call(ctx, "dom.styleSheetFor", map[string]string{"selector": selector}, &result); err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	return &shift.StyleSheetRef{Href: result.Href, Selector: result.Selector, Inline: result.Inline}, nil
}
