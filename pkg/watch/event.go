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

package watch

import (
	kcclient "github.com/kubecore/kubecore/pkg/client"
	"github.com/kubecore/kubecore/pkg/errorboundary"
)

// EventKind tags a processed Watcher event, per spec.md §3.
type EventKind int

const (
	// Applied means the object was added or modified.
	Applied EventKind = iota
	// Deleted means the object was removed.
	Deleted
	// Restarted carries a full snapshot that supersedes any prior
	// state for this watcher.
	Restarted
)

func (k EventKind) String() string {
	switch k {
	case Applied:
		return "Applied"
	case Deleted:
		return "Deleted"
	case Restarted:
		return "Restarted"
	default:
		return "Unknown"
	}
}

// Event is one item the Watcher yields to its caller (and to the
// Reflector downstream).
type Event struct {
	Kind    EventKind
	Entry   errorboundary.Entry
	Entries []errorboundary.Entry // populated only for Restarted
}

// Key returns the ObjectKey of an Applied/Deleted event's object. It
// panics if called on a Restarted event; use Entries there instead.
func (e Event) Key() kcclient.ObjectKey {
	return kcclient.ObjectKey{Namespace: e.Entry.Meta.GetNamespace(), Name: e.Entry.Meta.GetName()}
}
