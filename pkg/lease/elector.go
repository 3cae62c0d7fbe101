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

package lease

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

// Elector runs a single-holder leader election loop over one Lease
// object, per spec.md §4.8. One Elector corresponds to one identity
// racing for one lease name; build a fresh Elector per attempt.
type Elector struct {
	client    *kcclient.Client
	basePath  string
	namespace string
	name      string
	identity  string
	duration  time.Duration

	current *leaseObject
}

// New builds an Elector for the named Lease under basePath (the
// namespaced coordination.k8s.io/v1 leases collection URL), racing as
// identity with the given lease duration.
func New(client *kcclient.Client, basePath, namespace, name, identity string, duration time.Duration) *Elector {
	return &Elector{
		client:    client,
		basePath:  basePath,
		namespace: namespace,
		name:      name,
		identity:  identity,
		duration:  duration,
	}
}

func (e *Elector) now() time.Time { return time.Now() }

var errNotHolder = errors.New("lease no longer held by self")
var errStolen = errors.New("lease already held by another identity")

// Acquire runs the acquire loop from spec.md §4.8 step 1: it blocks
// until e holds the lease, a non-retryable API error occurs, or ctx
// is canceled.
func (e *Elector) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cur, err := e.get(ctx)
		if err != nil {
			if !kcclient.IsNotFound(err) {
				return &Error{Op: AcquireGet, Err: err}
			}
			cur = e.newLease()
			if cerr := e.create(ctx, cur); cerr != nil {
				if kcclient.IsAlreadyExists(cerr) {
					continue
				}
				return &Error{Op: AcquireCommit, Err: cerr}
			}
		}

		st := classify(cur, e.identity, e.now())
		if st.Kind == HeldByOther && st.ExpiresAt.After(e.now()) {
			glog.V(3).Infof("lease %q held by %q until %s, waiting", e.name, st.Holder, st.ExpiresAt)
			if err := e.sleepUntil(ctx, st.ExpiresAt); err != nil {
				return err
			}
			continue
		}

		wasHolder := st.Kind == HeldBySelf
		next := copyLease(cur)
		setHolder(next, e.identity, e.duration, e.now())
		if !wasHolder {
			incrementTransitions(next)
		}

		commitErr := retryOnConflict(ctx, func() error {
			return e.commit(ctx, next)
		})
		if commitErr != nil {
			if kcclient.IsConflict(commitErr) {
				continue
			}
			return &Error{Op: AcquireCommit, Err: commitErr}
		}
		e.current = next
		glog.V(2).Infof("lease %q acquired by %q", e.name, e.identity)
		return nil
	}
}

// renewLoop runs concurrently with the protected work, per step 2: it
// sleeps until the next renew deadline, re-reads and re-writes
// renewTime, and fails the moment it observes the lease is no longer
// ours.
func (e *Elector) renewLoop(ctx context.Context) error {
	for {
		st := classify(e.current, e.identity, e.now())
		if st.Kind != HeldBySelf {
			return &Error{Op: RenewAcquire, Err: errNotHolder}
		}
		if err := e.sleepUntil(ctx, st.RenewAt); err != nil {
			return nil // ctx canceled because the protected work finished; not a failure
		}

		var next *leaseObject
		commitErr := retryOnConflict(ctx, func() error {
			fresh, gerr := e.get(ctx)
			if gerr != nil {
				return gerr
			}
			fst := classify(fresh, e.identity, e.now())
			if fst.Kind != HeldBySelf {
				return errStolen
			}
			next = copyLease(fresh)
			touchRenewTime(next, e.now())
			return e.commit(ctx, next)
		})
		if commitErr != nil {
			if errors.Is(commitErr, errStolen) {
				glog.Warningf("lease %q stolen while renewing", e.name)
			}
			return &Error{Op: RenewAcquire, Err: commitErr}
		}
		e.current = next
	}
}

// Release runs step 3: it clears holder_identity if e still holds the
// lease, or reports ReleaseAlreadyStolen if another identity has
// already taken over.
func (e *Elector) Release(ctx context.Context) error {
	cur, err := e.get(ctx)
	if err != nil {
		return &Error{Op: ReleaseGet, Err: err}
	}
	st := classify(cur, e.identity, e.now())
	switch st.Kind {
	case Unheld:
		return nil
	case HeldByOther:
		return &Error{Op: ReleaseAlreadyStolen}
	}

	commitErr := retryOnConflict(ctx, func() error {
		fresh, gerr := e.get(ctx)
		if gerr != nil {
			return gerr
		}
		fst := classify(fresh, e.identity, e.now())
		if fst.Kind == HeldByOther {
			return errStolen
		}
		if fst.Kind == Unheld {
			return nil
		}
		next := copyLease(fresh)
		clearHolder(next)
		incrementTransitions(next)
		return e.commit(ctx, next)
	})
	if commitErr != nil {
		if errors.Is(commitErr, errStolen) {
			return &Error{Op: ReleaseAlreadyStolen}
		}
		return &Error{Op: ReleaseCommit, Err: commitErr}
	}
	return nil
}

type result struct {
	out interface{}
	err error
}

// Run acquires the lease, runs f concurrently with a renew loop, and
// releases the lease once f returns — or fails fast with a Renew
// error if the lease is lost while f is still running. f receives a
// context that is canceled the moment the renew loop can no longer
// guarantee exclusivity.
func (e *Elector) Run(ctx context.Context, f func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := e.Acquire(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	renewDone := make(chan error, 1)
	go func() { renewDone <- e.renewLoop(runCtx) }()

	fDone := make(chan result, 1)
	go func() {
		out, err := f(runCtx)
		fDone <- result{out: out, err: err}
	}()

	var out interface{}
	var runErr error
	select {
	case r := <-fDone:
		out, runErr = r.out, r.err
		cancel()
		<-renewDone
	case rerr := <-renewDone:
		runErr = rerr
		cancel()
		<-fDone
	}

	if relErr := e.Release(context.Background()); relErr != nil && runErr == nil {
		runErr = relErr
	}
	return out, runErr
}

func (e *Elector) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(e.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
