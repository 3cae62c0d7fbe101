/*
Copyright 2019 The MayaData Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package wsstream performs the RFC6455 WebSocket upgrade handshake
// used by exec/attach/port-forward, including the v4/v5
// channel.k8s.io subprotocol negotiation described in spec.md §4.4.
// It hand-rolls the handshake (key generation, request construction,
// response verification) the way kube-rs's client/upgrade.rs does,
// then hands the already-upgraded connection to gorilla/websocket for
// frame reading/writing — gorilla's (Conn, bool) constructor is built
// exactly for wrapping a connection whose handshake happened
// elsewhere.
package wsstream

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsGUID is the magic GUID from RFC6455 §1.3.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ProtocolVersion distinguishes the two channel.k8s.io subprotocols.
// v5 carries per-stream CLOSE frames; v4 does not.
type ProtocolVersion int

const (
	ProtocolUnknown ProtocolVersion = iota
	ProtocolV4
	ProtocolV5
)

func (p ProtocolVersion) String() string {
	switch p {
	case ProtocolV4:
		return "v4.channel.k8s.io"
	case ProtocolV5:
		return "v5.channel.k8s.io"
	default:
		return "unknown"
	}
}

// ExecProtocols is the subprotocol preference list for exec/attach:
// the server is offered v5 first, falling back to v4.
var ExecProtocols = []string{"v5.channel.k8s.io", "v4.channel.k8s.io"}

// PortForwardProtocols is the subprotocol list for port-forward, which
// only ever speaks v4.
var PortForwardProtocols = []string{"v4.channel.k8s.io"}

// Channel identifies one multiplexed stream within a WebSocket
// connection by the first byte of each binary message, per spec.md
// §4.4.
type Channel byte

const (
	ChannelStdin       Channel = 0
	ChannelStdout      Channel = 1
	ChannelStderr      Channel = 2
	ChannelErrorStatus Channel = 3
	ChannelResize      Channel = 4
)

// generateKey returns a random 16-byte value, base64 encoded, for
// Sec-WebSocket-Key.
func generateKey() (string, error) {
	b := make([]byte, 16)
	if _, err := crand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate websocket key")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DeriveAcceptKey computes the expected Sec-WebSocket-Accept value for
// a given Sec-WebSocket-Key, per RFC6455 §1.3:
// base64(SHA1(key + GUID)). Exported so callers (and tests) can verify
// RFC6455 test vectors directly, per spec.md §8 property 7.
func DeriveAcceptKey(key string) string {
	h := sha1.New()
	io.WriteString(h, key)
	io.WriteString(h, wsGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Dialer opens the raw, possibly-TLS, duplex connection the handshake
// is written over. This is the "authenticated request-sending
// capability" boundary from spec.md §1 — TLS material and
// credentials live outside this package.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Upgrader performs the client side of an RFC6455 upgrade for one
// request.
type Upgrader struct {
	// Protocols is the Sec-WebSocket-Protocol offer list, in
	// preference order. Use ExecProtocols or PortForwardProtocols.
	Protocols []string
	// TLSConfig configures the TLS client when reqURL's scheme is
	// https/wss; the scheme alone decides whether TLS is used. Other
	// schemes use plain TCP and ignore it.
	TLSConfig *tls.Config
}

// Connection is an established, framed WebSocket connection plus the
// subprotocol the server selected.
type Connection struct {
	conn     *websocket.Conn
	Protocol ProtocolVersion
}

// ReadMessage blocks for the next binary message and splits off its
// leading channel-id byte, per spec.md §4.4.
func (c *Connection) ReadMessage() (Channel, []byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	if mt != websocket.BinaryMessage || len(data) == 0 {
		return 0, nil, errors.Errorf("unexpected websocket frame: type=%d len=%d", mt, len(data))
	}
	return Channel(data[0]), data[1:], nil
}

// WriteMessage sends payload on the given channel.
func (c *Connection) WriteMessage(ch Channel, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(ch)
	copy(buf[1:], payload)
	return c.conn.WriteMessage(websocket.BinaryMessage, buf)
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Open performs the handshake against reqURL and returns a framed
// Connection. header carries caller-supplied auth headers (bearer
// token, etc.); Upgrader adds the WebSocket-specific headers.
func (u *Upgrader) Open(ctx context.Context, dialer Dialer, reqURL *url.URL, header http.Header) (*Connection, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	req := &http.Request{
		Method: "GET",
		URL:    reqURL,
		Header: header.Clone(),
		Host:   reqURL.Host,
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", key)
	if len(u.Protocols) > 0 {
		req.Header.Set("Sec-WebSocket-Protocol", strings.Join(u.Protocols, ", "))
	}

	addr := reqURL.Host
	if !strings.Contains(addr, ":") {
		if reqURL.Scheme == "https" || reqURL.Scheme == "wss" {
			addr = addr + ":443"
		} else {
			addr = addr + ":80"
		}
	}

	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %q", addr)
	}
	conn := rawConn
	if reqURL.Scheme == "https" || reqURL.Scheme == "wss" {
		tlsConn := tls.Client(rawConn, u.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return nil, errors.Wrap(err, "tls handshake")
		}
		conn = tlsConn
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "write upgrade request")
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "read upgrade response")
	}
	defer resp.Body.Close()

	protocol, err := verifyHandshakeResponse(resp, key, u.Protocols)
	if err != nil {
		conn.Close()
		return nil, err
	}

	glog.V(4).Infof("websocket upgrade succeeded: protocol=%s", protocol)

	wsConn := websocket.NewConn(conn, false, 32*1024, 32*1024, br, nil, nil)
	return &Connection{conn: wsConn, Protocol: parseProtocol(protocol)}, nil
}

// verifyHandshakeResponse checks status, Upgrade/Connection headers,
// the Sec-WebSocket-Accept digest, and subprotocol selection, per
// spec.md §4.4 and the testable property in §8.7.
func verifyHandshakeResponse(resp *http.Response, key string, offered []string) (string, error) {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return "", errors.Errorf("websocket upgrade failed: status %d", resp.StatusCode)
	}
	if !strings.EqualFold(resp.Header.Get("Upgrade"), "websocket") {
		return "", errors.Errorf("websocket upgrade failed: Upgrade header = %q", resp.Header.Get("Upgrade"))
	}
	if !headerContainsToken(resp.Header.Get("Connection"), "upgrade") {
		return "", errors.Errorf("websocket upgrade failed: Connection header = %q", resp.Header.Get("Connection"))
	}
	want := DeriveAcceptKey(key)
	got := resp.Header.Get("Sec-WebSocket-Accept")
	if got != want {
		return "", errors.Errorf("websocket upgrade failed: Sec-WebSocket-Accept mismatch: got %q want %q", got, want)
	}
	protocol := resp.Header.Get("Sec-WebSocket-Protocol")
	if len(offered) > 0 {
		if protocol == "" {
			return "", errors.New("websocket upgrade failed: server did not select a subprotocol")
		}
		if !containsString(offered, protocol) {
			return "", errors.Errorf("websocket upgrade failed: server selected unoffered subprotocol %q", protocol)
		}
	}
	return protocol, nil
}

func parseProtocol(s string) ProtocolVersion {
	switch s {
	case "v4.channel.k8s.io":
		return ProtocolV4
	case "v5.channel.k8s.io":
		return ProtocolV5
	default:
		return ProtocolUnknown
	}
}

func headerContainsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ResizeMessage is the JSON payload written on ChannelResize whenever
// the terminal size changes, per spec.md §4.4.
type ResizeMessage struct {
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

func (r ResizeMessage) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
