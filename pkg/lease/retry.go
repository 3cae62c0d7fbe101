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
	"time"

	"k8s.io/client-go/util/retry"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

// retryOnConflict runs fn, retrying with retry.DefaultBackoff's step
// schedule as long as fn fails with a 409 Conflict, exactly the
// "commit with optimistic concurrency (on conflict retry)" contract
// from spec.md §4.8. It mirrors metac's dynamic/clientset.go use of
// retry.RetryOnConflict, hand-stepped here because kcclient.StatusError
// is not an apimachinery APIStatus and so can't drive that helper's
// built-in conflict check directly.
func retryOnConflict(ctx context.Context, fn func() error) error {
	backoff := retry.DefaultBackoff
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !kcclient.IsConflict(err) {
			return err
		}
		if backoff.Steps < 1 {
			return err
		}
		d := backoff.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}
