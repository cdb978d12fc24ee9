package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	logx "promptpilot/pkg/logx"
)

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`

	// Method is set on protocol events (which carry no id).
	Method string `json:"method,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("cdp: remote error %d: %s", e.Code, e.Message)
}

// call performs one id-correlated request over the socket.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	done := c.readDone
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("cdp: write %s: %w", method, err)
	}

	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-done:
		return nil, ErrNotConnected
	case <-callCtx.Done():
		return nil, fmt.Errorf("cdp: %s: %w", method, callCtx.Err())
	}
}

// readLoop demultiplexes responses to their callers until the socket dies.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			c.log.Debug("transport read loop ended", logx.Err(err))
			return
		}
		if resp.ID == 0 {
			// Unsolicited protocol event; nothing subscribes to these.
			continue
		}
		c.mu.Lock()
		ch := c.pending[resp.ID]
		c.mu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
}

type evalPayload struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value,omitempty"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails,omitempty"`
}

// evaluate runs an expression in the page and decodes its by-value result
// into out.
func (c *Client) evaluate(ctx context.Context, expr string, out any) error {
	raw, err := c.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
	})
	if err != nil {
		return err
	}

	var payload evalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("cdp: evaluate result: %w", err)
	}
	if ed := payload.ExceptionDetails; ed != nil {
		desc := ed.Text
		if ed.Exception != nil && ed.Exception.Description != "" {
			desc = ed.Exception.Description
		}
		return fmt.Errorf("cdp: page exception: %s", desc)
	}
	if out == nil || len(payload.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload.Result.Value, out); err != nil {
		return fmt.Errorf("cdp: evaluate value: %w", err)
	}
	return nil
}
