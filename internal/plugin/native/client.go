package native

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
)

// ErrCallFailed is returned when the host reports a service call failure by
// handing back no buffer. The host does not say why; the plugin treats every
// such failure the same way.
var ErrCallFailed = errors.New("native: service call failed")

// Client is the plugin-side face of the bridge. It talks through the
// installed callback table and hides the buffer ownership steps: every call
// consumes its result buffer exactly once before returning plain bytes.
type Client struct {
	table *Table
}

// NewClient returns a client reading callbacks from table.
func NewClient(table *Table) *Client {
	return &Client{table: table}
}

// CallService invokes service.method with JSON params and returns the parsed
// result document. A nil params slice sends no arguments.
func (c *Client) CallService(svc, method string, params []byte) (gjson.Result, error) {
	cb, err := c.table.get()
	if err != nil {
		return gjson.Result{}, err
	}
	if cb.CallService == nil {
		return gjson.Result{}, fmt.Errorf("%w: CallService", ErrNotInstalled)
	}
	buf := cb.CallService(svc, method, params)
	if buf == nil {
		return gjson.Result{}, fmt.Errorf("%w: %s.%s", ErrCallFailed, svc, method)
	}
	raw, err := buf.Take()
	if err != nil {
		return gjson.Result{}, err
	}
	// Tolerate a trailing terminator from hosts that zero-pad.
	raw = bytes.TrimRight(raw, "\x00")
	return gjson.ParseBytes(raw), nil
}

// ReadImageFile loads an image file through the host and returns its bytes.
// All failure statuses surface as errors; callers never see a partial
// buffer.
func (c *Client) ReadImageFile(path string) ([]byte, error) {
	cb, err := c.table.get()
	if err != nil {
		return nil, err
	}
	if cb.ReadImageFile == nil {
		return nil, fmt.Errorf("%w: ReadImageFile", ErrNotInstalled)
	}
	buf, status := cb.ReadImageFile(path)
	if status != StatusOK || buf == nil {
		if buf != nil {
			buf.Release()
		}
		return nil, statusError(status)
	}
	return buf.Take()
}

// Log writes to the host log. Interior NUL bytes are stripped rather than
// truncating the message at the first one.
func (c *Client) Log(level logging.Level, msg string) {
	cb, err := c.table.get()
	if err != nil || cb.Log == nil {
		return
	}
	if bytes.ContainsRune([]byte(msg), 0) {
		msg = string(bytes.ReplaceAll([]byte(msg), []byte{0}, nil))
	}
	cb.Log(int32(level), msg)
}
