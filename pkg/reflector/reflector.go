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

package reflector

import (
	"context"

	"github.com/golang/glog"

	"github.com/kubecore/kubecore/pkg/watch"
)

// EventHandler receives each event the Reflector applies to the
// Store, in the same order it was applied — a reader that consults
// the Store after observing an event here is guaranteed to see that
// event's effect already reflected, per spec.md §5.
type EventHandler func(watch.Event)

// Reflector drives a watch.Watcher and applies every event to a
// Writer, then forwards the same event unchanged to an EventHandler.
// This lets callers both read from the Store and react to individual
// events, mirroring the dual-purpose loop in
// third_party/kubernetes/controller.go's WaitForCacheSync callers
// (sync the cache, then process queued work).
type Reflector struct {
	watcher *watch.Watcher
	writer  *Writer
}

// New builds a Reflector over watcher, applying events to writer.
func New(watcher *watch.Watcher, writer *Writer) *Reflector {
	return &Reflector{watcher: watcher, writer: writer}
}

// Run pulls events from the Watcher until ctx is canceled or the
// Watcher returns a non-recoverable error (only ctx cancellation,
// per watch.Watcher.Next's contract). handler may be nil.
func (r *Reflector) Run(ctx context.Context, handler EventHandler) error {
	for {
		ev, err := r.watcher.Next(ctx)
		if err != nil {
			return err
		}

		switch ev.Kind {
		case watch.Restarted:
			glog.V(3).Infof("reflector: restarted with %d objects", len(ev.Entries))
			r.writer.ApplyRestarted(ev.Entries)
		case watch.Applied:
			r.writer.ApplyApplied(ev.Entry)
		case watch.Deleted:
			r.writer.ApplyDeleted(ev.Entry)
		}

		if handler != nil {
			handler(ev)
		}
	}
}
