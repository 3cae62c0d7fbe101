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

package waitfor

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func asUnstructured(obj interface{}) (*unstructured.Unstructured, bool) {
	switch v := obj.(type) {
	case *unstructured.Unstructured:
		return v, true
	case *map[string]interface{}:
		return &unstructured.Unstructured{Object: *v}, true
	default:
		return nil, false
	}
}

// IsPodRunning is a Predicate satisfied once a Pod's status.phase
// reaches "Running" (or terminates into "Succeeded"/"Failed", which
// also unblocks the wait so callers don't hang forever on a pod that
// will never run).
func IsPodRunning(obj interface{}, present bool) bool {
	if !present {
		return false
	}
	u, ok := asUnstructured(obj)
	if !ok {
		return false
	}
	phase, _, _ := unstructured.NestedString(u.Object, "status", "phase")
	switch phase {
	case "Running", "Succeeded", "Failed":
		return true
	default:
		return false
	}
}

// IsDeleted returns a Predicate satisfied once the object is absent,
// or once a differently-UID'd object occupies the same name (the
// original object was deleted and replaced), matching spec.md's
// "wait for this exact incarnation to go away" semantics.
func IsDeleted(uid string) Predicate {
	return func(obj interface{}, present bool) bool {
		if !present {
			return true
		}
		u, ok := asUnstructured(obj)
		if !ok {
			return false
		}
		return u.GetUID() != "" && string(u.GetUID()) != uid
	}
}

// IsCRDEstablished is satisfied once a CustomResourceDefinition's
// status.conditions contains an "Established" condition with
// status "True".
func IsCRDEstablished(obj interface{}, present bool) bool {
	if !present {
		return false
	}
	u, ok := asUnstructured(obj)
	if !ok {
		return false
	}
	conditions, _, _ := unstructured.NestedSlice(u.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] == "Established" && cond["status"] == "True" {
			return true
		}
	}
	return false
}
