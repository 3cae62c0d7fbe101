/*
Copyright 2017 Google Inc.
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

package schema

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	apischema "k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
)

// DiscoveryCache resolves authoritative Resource descriptors from live
// API discovery, for custom resources where Pluralize's best-effort
// guess isn't good enough. It refreshes on an interval and swaps in a
// new immutable map atomically, the same copy-on-write pattern the
// Store (pkg/reflector) uses for its snapshots.
type DiscoveryCache struct {
	mutex sync.RWMutex
	byGVK map[apischema.GroupVersionKind]Resource

	client         discovery.DiscoveryInterface
	stopCh, doneCh chan struct{}
}

// NewDiscoveryCache builds a cache backed by client.
func NewDiscoveryCache(client discovery.DiscoveryInterface) *DiscoveryCache {
	return &DiscoveryCache{client: client}
}

// Resolve returns the authoritative Resource for gvk, if discovery has
// observed it. Callers fall back to New's Pluralize guess on a miss.
func (c *DiscoveryCache) Resolve(gvk apischema.GroupVersionKind) (Resource, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	r, ok := c.byGVK[gvk]
	return r, ok
}

// refresh fetches all group-versions and their resources from the
// server and swaps the cache. Built outside the lock so readers are
// never blocked on network I/O.
func (c *DiscoveryCache) refresh() {
	glog.V(7).Info("refreshing API discovery info for resource schema cache")
	groups, err := c.client.ServerResources()
	if err != nil {
		glog.Errorf("failed to fetch discovery info: %v", err)
		return
	}

	byGVK := make(map[apischema.GroupVersionKind]Resource, len(groups))
	for _, group := range groups {
		gv, err := apischema.ParseGroupVersion(group.GroupVersion)
		if err != nil {
			// This shouldn't happen because we get this value from
			// the server.
			panic(fmt.Sprintf("invalid group version from discovery: %v", err))
		}
		for _, apiResource := range group.APIResources {
			scope := Cluster
			if apiResource.Namespaced {
				scope = Namespaced
			}
			gvk := gv.WithKind(apiResource.Kind)
			byGVK[gvk] = Resource{
				Group:   gv.Group,
				Version: gv.Version,
				Kind:    apiResource.Kind,
				Plural:  apiResource.Name,
				Scope:   scope,
			}
		}
	}

	c.mutex.Lock()
	c.byGVK = byGVK
	c.mutex.Unlock()
}

// Start runs discovery refresh on refreshInterval until Stop is
// called. Every refresh, including the first, runs in a background
// goroutine and Start returns at once; HasSynced reports when the
// first one has completed.
func (c *DiscoveryCache) Start(refreshInterval time.Duration) {
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go func() {
		defer close(c.doneCh)

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			c.refresh()

			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the refresh loop and waits for it to exit.
func (c *DiscoveryCache) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// HasSynced reports whether at least one refresh has completed.
func (c *DiscoveryCache) HasSynced() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.byGVK != nil
}
