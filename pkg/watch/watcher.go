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

// Package watch implements the restartable list-then-watch state
// machine from spec.md §4.5: a paged List establishes a snapshot and
// a resourceVersion to resume from; a long-lived Watch turns server
// events into Applied/Deleted events; a 410 Gone or unrecoverable
// stream error triggers a full relist. It is a lazy sequence in the
// style of metac's dynamic/discovery.ResourceMap.refresh loop and
// third_party/kubernetes/controller.go's stopCh-driven goroutines,
// except here the caller pulls one event at a time via Next instead
// of the Watcher running its own goroutine.
package watch

import (
	"context"
	"errors"
	"io"

	"github.com/golang/glog"

	kcclient "github.com/kubecore/kubecore/pkg/client"
	"github.com/kubecore/kubecore/pkg/errorboundary"
)

type state int

const (
	stateEmpty state = iota
	stateWatching
)

const defaultPageSize = 500

// Options configures a Watcher.
type Options struct {
	// PageSize is the List page size; 0 uses the spec default of 500.
	PageSize int64
	// LabelSelector and FieldSelector scope both List and Watch.
	LabelSelector string
	FieldSelector string
}

// Watcher is the restartable list-then-watch state machine. It
// produces events only when polled via Next; it holds no background
// goroutine of its own.
type Watcher struct {
	source    Source
	newObject func() interface{}
	opts      Options
	backoff   *Backoff

	state  state
	rv     string
	stream *kcclient.EventStream
}

// New builds a Watcher over source. newObject must return a fresh
// pointer to the typed object shape to decode each item into (pass a
// closure over the concrete type, or over *unstructured.Unstructured
// for dynamic resources).
func New(source Source, newObject func() interface{}, opts Options) *Watcher {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Watcher{
		source:    source,
		newObject: newObject,
		opts:      opts,
		backoff:   NewBackoff(),
		state:     stateEmpty,
	}
}

// Close releases any open watch stream. Safe to call even if nothing
// is open.
func (w *Watcher) Close() error {
	if w.stream != nil {
		err := w.stream.Close()
		w.stream = nil
		return err
	}
	return nil
}

// Next blocks until the next event is available, a non-retryable
// error occurs, or ctx is canceled. Transient transport errors and
// 410 Gone are handled internally via relist/backoff and never
// surface from Next; only ctx cancellation returns an error here,
// per spec.md §7 (the Watcher recovers locally from everything else).
func (w *Watcher) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		switch w.state {
		case stateEmpty:
			ev, err := w.relist(ctx)
			if err != nil {
				glog.Errorf("watcher: relist failed, backing off: %v", err)
				if serr := w.backoff.Sleep(ctx); serr != nil {
					return Event{}, serr
				}
				continue
			}
			return ev, nil

		case stateWatching:
			ev, ok, err := w.pollWatch(ctx)
			if err != nil {
				glog.Errorf("watcher: watch failed, backing off: %v", err)
				w.closeStream()
				w.state = stateEmpty
				if serr := w.backoff.Sleep(ctx); serr != nil {
					return Event{}, serr
				}
				continue
			}
			if !ok {
				// Clean stream end, bookmark, or a Gone/relist
				// transition already applied by pollWatch: loop
				// around and either reopen the watch or relist.
				continue
			}
			return ev, nil
		}
	}
}

func (w *Watcher) closeStream() {
	if w.stream != nil {
		w.stream.Close()
		w.stream = nil
	}
}

// relist fetches every page of the collection, failing the whole
// attempt if any page fails, per spec.md §4.5. On success it emits a
// single Restarted event and the resourceVersion of the final page.
func (w *Watcher) relist(ctx context.Context) (Event, error) {
	var entries []errorboundary.Entry
	var cont string
	var rv string
	for {
		page, err := w.source.List(ctx, kcclient.ListOptions{
			LabelSelector: w.opts.LabelSelector,
			FieldSelector: w.opts.FieldSelector,
			Limit:         w.opts.PageSize,
			Continue:      cont,
		})
		if err != nil {
			return Event{}, err
		}
		for _, raw := range page.Items {
			entries = append(entries, errorboundary.Decode(raw, w.newObject))
		}
		rv = page.ResourceVersion
		cont = page.Continue
		if cont == "" {
			break
		}
	}

	w.rv = rv
	w.state = stateWatching
	w.backoff.Reset()
	return Event{Kind: Restarted, Entries: entries}, nil
}

// pollWatch reads exactly one decoded event from the open watch
// stream (opening it first if necessary), per the Watching{rv} row of
// spec.md §4.5's state table. ok is false when the caller should loop
// again without an event to return (bookmark, clean EOF, or an
// internal Gone-triggered relist).
func (w *Watcher) pollWatch(ctx context.Context) (ev Event, ok bool, err error) {
	if w.stream == nil {
		stream, err := w.source.Watch(ctx, kcclient.ListOptions{
			LabelSelector:       w.opts.LabelSelector,
			FieldSelector:       w.opts.FieldSelector,
			ResourceVersion:     w.rv,
			AllowWatchBookmarks: true,
		})
		if err != nil {
			if kcclient.IsGone(err) {
				w.rv = ""
				w.state = stateEmpty
				return Event{}, false, nil
			}
			return Event{}, false, err
		}
		w.stream = stream
	}

	wireEv, err := w.stream.Next()
	if err != nil {
		// io.EOF (clean close, including idle timeouts absorbed by
		// the decoder) reconnects at the same resourceVersion with no
		// backoff; anything else is a transport failure.
		w.closeStream()
		if isCleanEOF(err) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}

	switch wireEv.Type {
	case kcclient.EventAdded, kcclient.EventModified:
		entry := errorboundary.Decode(wireEv.Object, w.newObject)
		w.advanceResourceVersion(entry)
		w.backoff.Reset()
		return Event{Kind: Applied, Entry: entry}, true, nil

	case kcclient.EventDeleted:
		entry := errorboundary.Decode(wireEv.Object, w.newObject)
		w.advanceResourceVersion(entry)
		w.backoff.Reset()
		return Event{Kind: Deleted, Entry: entry}, true, nil

	case kcclient.EventBookmark:
		entry := errorboundary.Decode(wireEv.Object, w.newObject)
		w.advanceResourceVersion(entry)
		w.backoff.Reset()
		return Event{}, false, nil

	case kcclient.EventError:
		st, _ := wireEv.StatusOf()
		w.closeStream()
		if st.Code == 410 || st.Reason == "Expired" || st.Reason == "Gone" {
			w.rv = ""
			w.state = stateEmpty
			return Event{}, false, nil
		}
		return Event{}, false, &kcclient.StatusError{Status: st}
	}

	glog.Warningf("watcher: ignoring unknown event type %q", wireEv.Type)
	return Event{}, false, nil
}

// advanceResourceVersion records the resume checkpoint from any event
// that carries one, so a later reconnect (clean EOF or transport
// retry) resumes as close to "now" as the server has told us,
// matching client-go's own watch-progress bookkeeping.
func (w *Watcher) advanceResourceVersion(entry errorboundary.Entry) {
	if entry.Meta == nil {
		return
	}
	if rv := entry.Meta.GetResourceVersion(); rv != "" {
		w.rv = rv
	}
}

func isCleanEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
