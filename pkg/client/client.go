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

package client

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/kubecore/kubecore/pkg/wsstream"
)

// Sender is the "authenticated request-sending capability" external
// collaborator from spec.md §1. Any *http.Client (with auth,
// TLS and retry already wired in by the caller) satisfies it.
type Sender interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends typed Verbs against one API server and decodes their
// responses, per spec.md §4.3. It deliberately knows nothing about
// kubeconfig, OIDC, or TLS — callers configure Sender accordingly,
// mirroring the way metac's main.go builds a *rest.Config once and
// hands it to dynamic/clientset.New.
type Client struct {
	Sender  Sender
	BaseURL *url.URL
	Dialer  wsstream.Dialer
}

// New builds a Client.
func New(sender Sender, baseURL *url.URL) *Client {
	return &Client{Sender: sender, BaseURL: baseURL}
}

func (c *Client) newRequest(ctx context.Context, v Verb) (*http.Request, error) {
	u := *c.BaseURL
	u.Path = v.Path
	if v.Query != nil {
		u.RawQuery = v.Query.Encode()
	}
	var body io.Reader
	if v.Body != nil {
		body = bytes.NewReader(v.Body)
	}
	req, err := http.NewRequestWithContext(ctx, v.Method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "build request %s %s", v.Method, u.String())
	}
	contentType := v.ContentType
	if contentType == "" && v.Body != nil {
		contentType = "application/json"
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and, for a non-2xx response, drains the body and
// classifies it into a *StatusError per spec.md §4.3. On success the
// caller owns resp.Body and must close it.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.Sender.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, readErr := ioutil.ReadAll(resp.Body)
	if readErr != nil {
		return nil, errors.Wrapf(readErr, "read error body for %s %s", req.Method, req.URL)
	}
	return nil, parseStatus(resp.StatusCode, body)
}

// RequestInto sends v and decodes a successful JSON response into out.
func (c *Client) RequestInto(ctx context.Context, v Verb, out interface{}) error {
	req, err := c.newRequest(ctx, v)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// RequestText sends v and returns the raw successful response body as
// a string.
func (c *Client) RequestText(ctx context.Context, v Verb) (string, error) {
	req, err := c.newRequest(ctx, v)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response body")
	}
	return string(body), nil
}

// RequestTextStream sends v and returns the live response body for
// streaming reads (e.g. LogStream). The caller must Close it.
func (c *Client) RequestTextStream(ctx context.Context, v Verb) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, v)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// EventStream pairs an EventDecoder with the underlying response so
// callers can Close it when done (e.g. the Watcher reconnecting).
type EventStream struct {
	*EventDecoder
	io.Closer
}

// RequestEvents opens a Watch verb and returns a decoder over its
// newline-delimited JSON body, per spec.md §4.3/§6.
func (c *Client) RequestEvents(ctx context.Context, v Verb) (*EventStream, error) {
	body, err := c.RequestTextStream(ctx, v)
	if err != nil {
		return nil, err
	}
	return &EventStream{EventDecoder: NewEventDecoder(body), Closer: body}, nil
}

// Connect performs a WebSocket upgrade for an exec/attach/port-forward
// verb, per spec.md §4.4. protocols selects the subprotocol offer
// list (wsstream.ExecProtocols or wsstream.PortForwardProtocols).
func (c *Client) Connect(ctx context.Context, v Verb, protocols []string, header http.Header) (*wsstream.Connection, error) {
	if c.Dialer == nil {
		return nil, errors.New("client has no websocket Dialer configured")
	}
	u := *c.BaseURL
	u.Path = v.Path
	if v.Query != nil {
		u.RawQuery = v.Query.Encode()
	}
	glog.V(4).Infof("opening websocket connection to %s", u.String())
	upgrader := &wsstream.Upgrader{Protocols: protocols}
	return upgrader.Open(ctx, c.Dialer, &u, header)
}
