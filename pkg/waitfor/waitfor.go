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

// Package waitfor implements predicate-driven synchronous waits on a
// single object's watch events, per spec.md §4.7. It is the
// single-object cousin of pkg/watch's full list-then-watch machine:
// no relist, no pagination, just "get once, then watch until the
// predicate is satisfied."
package waitfor

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/json"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

// Predicate is a pure function of the current observed object.
// present is false when the object does not exist (a DELETED event,
// or a NotFound on the initial Get).
type Predicate func(obj interface{}, present bool) bool

type metaOnly struct {
	Metadata struct {
		ResourceVersion string `json:"resourceVersion"`
	} `json:"metadata"`
}

// Condition performs a single Get against basePath/name; if predicate
// already matches, it returns immediately. Otherwise it opens a watch
// scoped to that one object at the Get's resourceVersion and
// evaluates predicate on every ADDED/MODIFIED (present=true) or
// DELETED (present=false) event until it returns true or ctx is
// canceled. newObject returns a fresh pointer to decode each
// observation into.
func Condition(ctx context.Context, c *kcclient.Client, basePath, name string, newObject func() interface{}, predicate Predicate) (interface{}, error) {
	raw, err := c.RequestText(ctx, kcclient.Get(basePath, name))
	switch {
	case err == nil:
		obj := newObject()
		if uerr := json.Unmarshal([]byte(raw), obj); uerr != nil {
			return nil, errors.Wrap(uerr, "decode initial get")
		}
		if predicate(obj, true) {
			return obj, nil
		}
	case kcclient.IsNotFound(err):
		if predicate(nil, false) {
			return nil, nil
		}
	default:
		return nil, err
	}

	var rv string
	if raw != "" {
		var m metaOnly
		if uerr := json.Unmarshal([]byte(raw), &m); uerr == nil {
			rv = m.Metadata.ResourceVersion
		}
	}

	fieldSelector := "metadata.name=" + name
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := c.RequestEvents(ctx, kcclient.Watch(basePath, kcclient.ListOptions{
			FieldSelector:       fieldSelector,
			ResourceVersion:     rv,
			AllowWatchBookmarks: true,
		}))
		if err != nil {
			if kcclient.IsGone(err) {
				// Our last-known resourceVersion aged out; drop it and
				// reopen the watch without a resourceVersion (no new
				// Get is made).
				rv = ""
				continue
			}
			return nil, err
		}

		obj, done, werr := drain(ctx, stream, newObject, predicate, &rv)
		stream.Close()
		if werr != nil {
			return nil, werr
		}
		if done {
			return obj, nil
		}
		// Clean stream end: reconnect at the last seen resourceVersion.
		glog.V(4).Infof("waitfor: watch for %q ended, reconnecting", name)
	}
}

func drain(ctx context.Context, stream *kcclient.EventStream, newObject func() interface{}, predicate Predicate, rv *string) (interface{}, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		ev, err := stream.Next()
		if err != nil {
			if isEOF(err) {
				return nil, false, nil
			}
			return nil, false, err
		}

		switch ev.Type {
		case kcclient.EventAdded, kcclient.EventModified:
			obj := newObject()
			if uerr := json.Unmarshal(ev.Object, obj); uerr != nil {
				return nil, false, errors.Wrap(uerr, "decode watch object")
			}
			updateRV(rv, obj)
			if predicate(obj, true) {
				return obj, true, nil
			}
		case kcclient.EventDeleted:
			updateRV(rv, nil)
			if predicate(nil, false) {
				return nil, true, nil
			}
		case kcclient.EventBookmark:
			var m metaOnly
			if uerr := json.Unmarshal(ev.Object, &m); uerr == nil && m.Metadata.ResourceVersion != "" {
				*rv = m.Metadata.ResourceVersion
			}
		case kcclient.EventError:
			st, _ := ev.StatusOf()
			return nil, false, &kcclient.StatusError{Status: st}
		}
	}
}

func updateRV(rv *string, obj interface{}) {
	if obj == nil {
		return
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return
	}
	var m metaOnly
	if err := json.Unmarshal(data, &m); err == nil && m.Metadata.ResourceVersion != "" {
		*rv = m.Metadata.ResourceVersion
	}
}

func isEOF(err error) bool {
	return err.Error() == "EOF"
}
