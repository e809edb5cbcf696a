// Package periphclient is the Agent Client (C1): a typed request/response
// HTTP client plus websocket stream multiplexer for talking to a
// Periphery host. Every call is one-shot, bearer-authenticated HTTP, per
// spec §4.1 and §6 — no client-side connection pooling beyond what
// net/http's transport already does. TLS verification is an explicit
// per-server opt-out (ServerConfig.IgnoreTLS), grounded on the teacher's
// internal/docker/client.go TLSConfig but inverted: the teacher's
// TLSConfig builds a strict mTLS trust chain for a Docker socket proxy,
// ours is a deliberately permissive override for self-signed agent certs.
package periphclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/komodore/core/internal/model"
)

// Envelope is the wire request shape spec §6 names:
// `{type: VariantName, params: {...}}`.
type Envelope struct {
	Type   string `json:"type"`
	Params any    `json:"params"`
}

// WireError is the decoded shape of a non-2xx Periphery response: "a
// serialized error object {error, trace[]} with the HTTP status
// mirroring the error class" (spec §6).
type WireError struct {
	StatusCode int
	Error      string   `json:"error"`
	Trace      []string `json:"trace"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("periphery error (%d): %s", e.StatusCode, e.Error)
}

// Client issues one-shot calls to a single Periphery host.
type Client struct {
	address string
	passkey string
	http    *http.Client
}

// New creates a Client bound to a Server resource's address/passkey. A
// per-server configurable timeout (spec §5 "Periphery calls carry a
// per-server configurable timeout") and the optional-off TLS
// verification knob (spec §4.1) are both read from cfg.
func New(cfg model.ServerConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{}
	if cfg.IgnoreTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-out, spec §4.1
	}
	return &Client{
		address: cfg.Address,
		passkey: cfg.Passkey,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Call sends envelope to /execute and decodes the response body into out.
// Network failures surface as model.ErrUnreachable; non-2xx responses
// surface as *WireError with the HTTP status chained as context (spec
// §4.1 "Error conditions").
func (c *Client) Call(ctx context.Context, variant string, params, out any) error {
	env := Envelope{Type: variant, Params: params}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+"/execute", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("authorization", c.passkey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var wireErr WireError
		_ = json.Unmarshal(respBody, &wireErr)
		wireErr.StatusCode = resp.StatusCode
		return &wireErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateTerminalAuthToken requests a single-use token from Periphery for
// opening a subsequent websocket connection, separating the long-lived
// user JWT from the ws channel (spec §6, §9).
func (c *Client) CreateTerminalAuthToken(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.Call(ctx, "CreateTerminalAuthToken", nil, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// TerminalExitSentinel is the line signalling the remote shell exited
// (spec §4.1: "Exit of the remote shell is signalled by a sentinel line
// __KOMODO_EXIT_CODE:N as the last framed record").
const TerminalExitSentinelPrefix = "__KOMODO_EXIT_CODE:"

// StreamConn is a bidirectional byte-frame stream to a Periphery
// terminal or container-exec endpoint.
type StreamConn struct {
	ws *websocket.Conn
}

// ConnectTerminal opens a full-duplex stream to a named named terminal
// session on the agent, authenticated by a single-use token (spec §4.1
// connect_terminal).
func (c *Client) ConnectTerminal(ctx context.Context, name, token string) (*StreamConn, error) {
	return c.connectWS(ctx, fmt.Sprintf("/terminal/%s?token=%s", name, token))
}

// ConnectContainerExec opens a full-duplex stream to a shell exec'd
// inside a running container (spec §4.1 connect_container_exec).
func (c *Client) ConnectContainerExec(ctx context.Context, container, shell, token string) (*StreamConn, error) {
	return c.connectWS(ctx, fmt.Sprintf("/exec/%s?shell=%s&token=%s", container, shell, token))
}

func (c *Client) connectWS(ctx context.Context, path string) (*StreamConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	wsURL := httpToWS(c.address) + path
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnreachable, err)
	}
	return &StreamConn{ws: conn}, nil
}

func httpToWS(addr string) string {
	switch {
	case len(addr) >= 5 && addr[:5] == "https":
		return "wss" + addr[5:]
	case len(addr) >= 4 && addr[:4] == "http":
		return "ws" + addr[4:]
	default:
		return addr
	}
}

// ReadFrame reads the next frame verbatim, along with whether it is the
// terminal exit sentinel.
func (s *StreamConn) ReadFrame() (data []byte, isExit bool, exitCode string, err error) {
	_, data, err = s.ws.ReadMessage()
	if err != nil {
		return nil, false, "", err
	}
	if bytes.HasPrefix(data, []byte(TerminalExitSentinelPrefix)) {
		return data, true, string(bytes.TrimPrefix(data, []byte(TerminalExitSentinelPrefix))), nil
	}
	return data, false, "", nil
}

// WriteFrame forwards a frame verbatim to the agent (spec §4.1 "server
// frames are forwarded verbatim between the user-facing websocket and the
// agent websocket").
func (s *StreamConn) WriteFrame(data []byte) error {
	return s.ws.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the underlying websocket, propagating close from either
// side per spec §5.
func (s *StreamConn) Close() error {
	return s.ws.Close()
}
