// Package client is the CLI side of the HTTP API: a thin bearer-auth JSON
// client plus the websocket event tail.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rvald/omcli/internal/protocol"
)

// Client talks to a running omcli server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the given server URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Command dispatch can legitimately park for the full device
		// timeout; give the transport headroom beyond it.
		http: &http.Client{Timeout: 35 * time.Second},
	}
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// do performs one JSON request and decodes the response into out (unless
// out is nil or the body is empty).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Command dispatches one command, optionally to an explicit device.
func (c *Client) Command(ctx context.Context, command string, params any, deviceID string) (*protocol.CommandResponse, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	req := protocol.CommandRequest{
		Command:  command,
		Params:   raw,
		DeviceID: deviceID,
	}
	var resp protocol.CommandResponse
	if err := c.do(ctx, http.MethodPost, "/api/command", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pair redeems a 6-digit pairing code.
func (c *Client) Pair(ctx context.Context, code string) (*protocol.PairResponse, error) {
	var resp protocol.PairResponse
	if err := c.do(ctx, http.MethodPost, "/api/devices/pair", protocol.PairRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Devices lists the paired devices.
func (c *Client) Devices(ctx context.Context) ([]protocol.DeviceInfo, error) {
	var list []protocol.DeviceInfo
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteDevice unpairs a device.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/devices/"+url.PathEscape(id), nil, nil)
}

// Status fetches the server status.
func (c *Client) Status(ctx context.Context) (*protocol.ServerStatus, error) {
	var status protocol.ServerStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Events subscribes to the server's client event socket and invokes fn for
// each event until ctx is cancelled or the stream ends.
func (c *Client) Events(ctx context.Context, fn func(protocol.ClientEvent)) error {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/client"
	wsURL.RawQuery = "token=" + url.QueryEscape(c.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var ev protocol.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}
