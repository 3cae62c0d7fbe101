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

import "time"

// Kind enumerates the three classifications a Lease's spec can fall
// into relative to one identity, per spec.md's glossary.
type Kind int

const (
	// Unheld means no holder is recorded at all.
	Unheld Kind = iota
	// HeldBySelf means the recorded holder is our own identity.
	HeldBySelf
	// HeldByOther means a different identity holds the lease.
	HeldByOther
)

// State is the result of classifying a Lease's spec against an
// identity and the current time.
type State struct {
	Kind Kind
	// Holder is set for HeldByOther.
	Holder string
	// RenewAt is renewTime + duration/2, set for HeldBySelf: the time
	// at which we must write a fresh renewTime to keep holding.
	RenewAt time.Time
	// ExpiresAt is renewTime + duration, set for HeldByOther: the
	// earliest time another identity may legitimately take over.
	ExpiresAt time.Time
}

func classify(l *leaseObject, selfIdentity string, now time.Time) State {
	if l.Spec.HolderIdentity == nil || *l.Spec.HolderIdentity == "" {
		return State{Kind: Unheld}
	}

	var dur time.Duration
	if l.Spec.LeaseDurationSeconds != nil {
		dur = time.Duration(*l.Spec.LeaseDurationSeconds) * time.Second
	}
	var renewTime time.Time
	if l.Spec.RenewTime != nil {
		renewTime = l.Spec.RenewTime.Time
	}

	if *l.Spec.HolderIdentity == selfIdentity {
		return State{Kind: HeldBySelf, RenewAt: renewTime.Add(dur / 2)}
	}
	return State{
		Kind:      HeldByOther,
		Holder:    *l.Spec.HolderIdentity,
		ExpiresAt: renewTime.Add(dur),
	}
}
