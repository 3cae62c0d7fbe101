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

package client

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Object is the minimal capability the client needs from a typed or
// unstructured Kubernetes object: metadata accessors plus a way back
// to the raw JSON form for re-decoding. Concrete resource types (both
// built-in and custom) implement this directly; callers working with
// unstructured.Unstructured already satisfy it.
type Object interface {
	metav1.Object
}

// ObjectKey identifies an object within one Resource by namespace and
// name. Namespace is empty for cluster-scoped objects.
type ObjectKey struct {
	Namespace string
	Name      string
}

func (k ObjectKey) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

// KeyOf builds the ObjectKey for o.
func KeyOf(o Object) ObjectKey {
	return ObjectKey{Namespace: o.GetNamespace(), Name: o.GetName()}
}
