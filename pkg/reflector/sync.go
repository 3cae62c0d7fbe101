/*
Copyright 2016 The Kubernetes Authors.
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
	"fmt"

	"github.com/golang/glog"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
)

// WaitForSync blocks until every Reader in readers has observed its
// first Restarted, logging progress the way third_party/kubernetes's
// WaitForCacheSync did for informer caches. It returns false (and
// records the failure via utilruntime.HandleError) if ctx is canceled
// before all readers become ready.
func WaitForSync(ctx context.Context, name string, readers ...*Reader) bool {
	glog.Infof("waiting for store to sync for %q", name)

	for _, r := range readers {
		if err := r.WaitReady(ctx); err != nil {
			utilruntime.HandleError(fmt.Errorf(
				"unable to sync store for %q: %w", name, err,
			))
			return false
		}
	}

	glog.Infof("store synced for %q", name)
	return true
}
