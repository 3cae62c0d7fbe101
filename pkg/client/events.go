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
	"bufio"
	"bytes"
	"io"
	"net"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/json"
)

// WireEventType is the "type" field of a line-delimited watch event,
// per spec.md §6.
type WireEventType string

const (
	EventAdded    WireEventType = "ADDED"
	EventModified WireEventType = "MODIFIED"
	EventDeleted  WireEventType = "DELETED"
	EventBookmark WireEventType = "BOOKMARK"
	EventError    WireEventType = "ERROR"
)

// WireEvent is one decoded line of a watch stream's newline-delimited
// JSON body.
type WireEvent struct {
	Type   WireEventType   `json:"type"`
	Object json.RawMessage `json:"object"`
}

// StatusOf decodes Object as a metav1.Status, for EventError entries.
func (e WireEvent) StatusOf() (metav1.Status, error) {
	var st metav1.Status
	err := json.Unmarshal(e.Object, &st)
	return st, err
}

// EventDecoder reads a byte stream and yields WireEvents, one per
// non-empty newline-delimited JSON line. Idle timeouts and
// chunked-EOF on the underlying body surface as io.EOF from Next (a
// clean stream end); all other I/O errors are returned verbatim so
// the Watcher can distinguish "reconnect" from "fatal" per spec.md
// §4.3.
type EventDecoder struct {
	scanner *bufio.Scanner
}

// NewEventDecoder wraps r for line-delimited WireEvent decoding.
func NewEventDecoder(r io.Reader) *EventDecoder {
	scanner := bufio.NewScanner(r)
	// Watch payloads (e.g. a large ConfigMap or CRD) can exceed the
	// default 64KiB token size.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)
	// Only newline-terminated lines are tokens; an unterminated tail at
	// EOF is discarded rather than handed to the JSON decoder.
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, bytes.TrimSuffix(data[:i], []byte("\r")), nil
		}
		return 0, nil, nil
	})
	return &EventDecoder{scanner: scanner}
}

// Next returns the next decoded event, or io.EOF when the stream ends
// cleanly (including an incomplete trailing line, which is dropped:
// watchers always reconnect with the last seen resourceVersion rather
// than trying to salvage a partial line).
func (d *EventDecoder) Next() (WireEvent, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev WireEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return WireEvent{}, err
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		if ne, ok := err.(net.Error); (ok && ne.Timeout()) || err == io.ErrUnexpectedEOF {
			return WireEvent{}, io.EOF
		}
		return WireEvent{}, err
	}
	return WireEvent{}, io.EOF
}
