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

// Package lease implements single-holder leader election over a
// coordination.k8s.io Lease object, per spec.md §4.8. It reads and
// writes the real coordinationv1.Lease type, so a lease this package
// writes is indistinguishable from one client-go's own LeaderElector
// would have written.
package lease

import (
	"context"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/json"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

type leaseObject = coordinationv1.Lease

func copyLease(l *leaseObject) *leaseObject {
	out := *l
	out.Spec = *l.Spec.DeepCopy()
	return &out
}

func int32ptr(v int32) *int32 { return &v }

func (e *Elector) get(ctx context.Context) (*leaseObject, error) {
	var l leaseObject
	if err := e.client.RequestInto(ctx, kcclient.Get(e.basePath, e.name), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (e *Elector) create(ctx context.Context, l *leaseObject) error {
	body, err := json.Marshal(l)
	if err != nil {
		return err
	}
	v, err := kcclient.Create(e.basePath, e.name, body, kcclient.CreateOptions{})
	if err != nil {
		return err
	}
	return e.client.RequestInto(ctx, v, l)
}

// commit replaces the lease via PUT, relying on metadata.resourceVersion
// already present on l for optimistic concurrency: a stale
// resourceVersion is rejected by the server as a 409 Conflict.
func (e *Elector) commit(ctx context.Context, l *leaseObject) error {
	body, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return e.client.RequestInto(ctx, kcclient.Replace(e.basePath, e.name, body), l)
}

func (e *Elector) newLease() *leaseObject {
	return &leaseObject{
		ObjectMeta: metav1.ObjectMeta{Name: e.name, Namespace: e.namespace},
	}
}

func setHolder(l *leaseObject, identity string, dur time.Duration, now time.Time) {
	mt := metav1.NewMicroTime(now)
	l.Spec.HolderIdentity = &identity
	l.Spec.AcquireTime = &mt
	l.Spec.RenewTime = &mt
	l.Spec.LeaseDurationSeconds = int32ptr(int32(dur.Seconds()))
}

func touchRenewTime(l *leaseObject, now time.Time) {
	mt := metav1.NewMicroTime(now)
	l.Spec.RenewTime = &mt
}

func incrementTransitions(l *leaseObject) {
	var cur int32
	if l.Spec.LeaseTransitions != nil {
		cur = *l.Spec.LeaseTransitions
	}
	l.Spec.LeaseTransitions = int32ptr(cur + 1)
}

func clearHolder(l *leaseObject) {
	l.Spec.HolderIdentity = nil
	l.Spec.AcquireTime = nil
	l.Spec.RenewTime = nil
}
