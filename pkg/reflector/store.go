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

// Package reflector mirrors a Resource's server-side state into a
// local Store by driving a watch.Watcher, per spec.md §4.6. The Store
// itself uses copy-on-write snapshots behind an atomically-swapped
// pointer the way metac's dynamic/discovery.ResourceMap guards
// rm.groupVersions with an RWMutex and replaces the whole map on
// refresh — generalized here from a discovery cache to an arbitrary
// object cache, and from a polling refresh to a driven watch.
package reflector

import (
	"context"
	"sync"
	"sync/atomic"

	kcclient "github.com/kubecore/kubecore/pkg/client"
	"github.com/kubecore/kubecore/pkg/errorboundary"
)

// Snapshot is an immutable point-in-time view of a Store. Callers
// must never mutate a Snapshot; a new one is built on every write.
type Snapshot map[kcclient.ObjectKey]errorboundary.Entry

// Store is a concurrent mapping from ObjectKey to the most recently
// observed object, plus a version counter bumped on every mutation.
// One Store produces exactly one Writer (held by the Reflector) and
// any number of Readers (held by consumers), all sharing the same
// underlying atomic snapshot pointer so writers never block readers
// and vice versa.
type Store struct {
	snapshot atomic.Value // Snapshot
	version  uint64

	mu        sync.Mutex // serializes writers only; readers never take this
	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewStore returns a fresh, empty Store along with its sole Writer
// and one Reader. Call Reader again for additional independent
// readers.
func NewStore() (*Writer, *Reader) {
	s := &Store{readyCh: make(chan struct{})}
	s.snapshot.Store(Snapshot{})
	return &Writer{store: s}, &Reader{store: s}
}

// Version returns the store's monotonically increasing mutation
// counter, useful for tests asserting ordering.
func (s *Store) Version() uint64 {
	return atomic.LoadUint64(&s.version)
}

func (s *Store) current() Snapshot {
	return s.snapshot.Load().(Snapshot)
}

func (s *Store) publish(next Snapshot) {
	s.snapshot.Store(next)
	atomic.AddUint64(&s.version, 1)
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

// Writer is the exclusive mutation handle for one Store. The
// Reflector is the only intended holder.
type Writer struct {
	store *Store
}

// Reader returns an additional Reader sharing this Writer's Store.
func (w *Writer) Reader() *Reader {
	return &Reader{store: w.store}
}

// ApplyRestarted atomically replaces the entire keyset with entries,
// per spec.md §4.6 and the invariant in §3: any key previously present
// but absent from entries is dropped, and no partial Restarted is
// ever visible to a Reader.
func (w *Writer) ApplyRestarted(entries []errorboundary.Entry) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	next := make(Snapshot, len(entries))
	for _, e := range entries {
		if e.Meta == nil {
			// Could not even recover a key; drop it, per the error
			// boundary's contract — nothing addressable survives.
			continue
		}
		next[keyOf(e)] = e
	}
	w.store.publish(next)
	w.store.markReady()
}

// ApplyApplied inserts or overwrites key(entry) -> entry.
func (w *Writer) ApplyApplied(entry errorboundary.Entry) {
	if entry.Meta == nil {
		return
	}
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	cur := w.store.current()
	next := make(Snapshot, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[keyOf(entry)] = entry
	w.store.publish(next)
}

// ApplyDeleted removes key(entry) from the store, if present.
func (w *Writer) ApplyDeleted(entry errorboundary.Entry) {
	if entry.Meta == nil {
		return
	}
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	cur := w.store.current()
	key := keyOf(entry)
	if _, ok := cur[key]; !ok {
		return
	}
	next := make(Snapshot, len(cur)-1)
	for k, v := range cur {
		if k != key {
			next[k] = v
		}
	}
	w.store.publish(next)
}

func keyOf(e errorboundary.Entry) kcclient.ObjectKey {
	return kcclient.ObjectKey{Namespace: e.Meta.GetNamespace(), Name: e.Meta.GetName()}
}

// Reader is a snapshot-taking read handle on a Store. Multiple
// Readers may be held concurrently and never block a Writer.
type Reader struct {
	store *Store
}

// State returns the current immutable snapshot. A Reader holding an
// older Snapshot value is unaffected by subsequent mutations, per
// spec.md §4.6.
func (r *Reader) State() Snapshot {
	return r.store.current()
}

// Get returns the entry for key, if present.
func (r *Reader) Get(key kcclient.ObjectKey) (errorboundary.Entry, bool) {
	e, ok := r.store.current()[key]
	return e, ok
}

// WaitReady blocks until the first Restarted has been applied, or ctx
// is canceled.
func (r *Reader) WaitReady(ctx context.Context) error {
	select {
	case <-r.store.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
