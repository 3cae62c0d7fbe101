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
	"context"
	"math/rand"
	"time"
)

// Backoff is the exponential-with-jitter schedule the Watcher uses
// between failed list/watch attempts, per spec.md §4.5: min 800ms,
// max 30s, factor 2, jitter ±10%, reset to min on each successful
// page or event.
type Backoff struct {
	Min, Max time.Duration
	Factor   float64
	Jitter   float64

	current time.Duration
}

// NewBackoff returns a Backoff with the spec's defaults.
func NewBackoff() *Backoff {
	return &Backoff{
		Min:    800 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: 0.1,
	}
}

// Reset returns the schedule to Min, as if no failures had occurred.
func (b *Backoff) Reset() {
	b.current = 0
}

// Sleep waits for the next backoff interval, or returns ctx.Err() if
// ctx is canceled first.
func (b *Backoff) Sleep(ctx context.Context) error {
	d := b.next()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backoff) next() time.Duration {
	if b.current <= 0 {
		b.current = b.Min
	} else {
		b.current = time.Duration(float64(b.current) * b.Factor)
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	return jitter(b.current, b.Jitter)
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * frac * float64(d)
	out := time.Duration(float64(d) + delta)
	if out < 0 {
		return 0
	}
	return out
}
