// Package cdp implements the automation transport over the Chrome DevTools
// Protocol exposed by the agent application's remote-debugging port.
//
// Prompts are delivered by evaluating injected JavaScript in the app's chat
// page; activity telemetry comes from a small monitor script installed into
// the same page that records the last click and the last DOM mutation.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"promptpilot/internal/autopilot"
	logx "promptpilot/pkg/logx"
)

// Config points the client at a remote-debugging endpoint.
type Config struct {
	Host string
	Port int

	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = "127.0.0.1"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	return c
}

var (
	ErrNotConnected = errors.New("cdp: not connected")
	ErrNoPageTarget = errors.New("cdp: no page target exposes a debugger URL")
)

// Client is a minimal DevTools-protocol client: target discovery over HTTP,
// id-correlated Runtime.evaluate calls over one WebSocket.
//
// It is safe for concurrent use.
type Client struct {
	cfg  Config
	log  logx.Logger
	http *http.Client

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[int64]chan rpcResponse
	nextID   int64
	readDone chan struct{}

	// writeMu serializes writes; gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex
}

func New(cfg Config, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: cfg.ConnectTimeout},
	}
}

func (c *Client) baseURL() string {
	return fmt.Sprintf("http://%s:%d", c.cfg.Host, c.cfg.Port)
}

// IsAvailable checks the debugging endpoint. Any failure reads as false.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Start discovers a page target, dials its debugger socket and installs the
// activity monitor. Calling Start on a connected client reconnects.
func (c *Client) Start(ctx context.Context) error {
	target, err := c.discoverTarget(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return fmt.Errorf("cdp: dial %s: %w", target.WebSocketDebuggerURL, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.pending = make(map[int64]chan rpcResponse)
	c.readDone = make(chan struct{})
	done := c.readDone
	c.mu.Unlock()

	go c.readLoop(conn, done)

	if err := c.installMonitor(ctx); err != nil {
		c.Stop()
		return err
	}

	c.log.Info("automation transport connected",
		logx.String("target", target.Title),
		logx.String("url", target.URL),
	)
	return nil
}

// Stop closes the socket. Pending calls fail with a closed-connection error.
func (c *Client) Stop() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Poll is the host-driven keepalive: it verifies the connection and
// re-installs the monitor if the page reloaded since the last poll. On a
// dead connection it attempts a single reconnect.
func (c *Client) Poll(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return c.Start(ctx)
	}
	if err := c.installMonitor(ctx); err != nil {
		c.log.Warn("transport poll failed; reconnecting", logx.Err(err))
		c.Stop()
		return c.Start(ctx)
	}
	return nil
}

// SendPrompt fills the chat input and submits it. The returned error is the
// structured send outcome the scheduler's retry policy acts on.
func (c *Client) SendPrompt(ctx context.Context, text string) error {
	var outcome string
	if err := c.evaluate(ctx, sendPromptExpr(text), &outcome); err != nil {
		return err
	}
	if outcome != "sent" {
		return fmt.Errorf("cdp: prompt not delivered: %s", outcome)
	}
	return nil
}

// Stats reads the monitor's activity record. Missing signals are zero.
func (c *Client) Stats(ctx context.Context) (autopilot.Stats, error) {
	var raw string
	if err := c.evaluate(ctx, statsJS, &raw); err != nil {
		return autopilot.Stats{}, err
	}
	var st struct {
		LastActivity  int64 `json:"lastActivity"`
		LastDomChange int64 `json:"lastDomChange"`
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return autopilot.Stats{}, fmt.Errorf("cdp: bad stats payload: %w", err)
	}
	return autopilot.Stats{LastActivity: st.LastActivity, LastDOMChange: st.LastDomChange}, nil
}

func (c *Client) installMonitor(ctx context.Context) error {
	var outcome string
	if err := c.evaluate(ctx, monitorJS, &outcome); err != nil {
		return err
	}
	if outcome == "installed" {
		c.log.Debug("activity monitor installed")
	}
	return nil
}

type targetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (c *Client) discoverTarget(ctx context.Context) (targetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/json/list", nil)
	if err != nil {
		return targetInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return targetInfo{}, fmt.Errorf("cdp: target discovery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return targetInfo{}, fmt.Errorf("cdp: target discovery: unexpected status %d", resp.StatusCode)
	}

	var targets []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return targetInfo{}, fmt.Errorf("cdp: target discovery: %w", err)
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t, nil
		}
	}
	return targetInfo{}, ErrNoPageTarget
}
