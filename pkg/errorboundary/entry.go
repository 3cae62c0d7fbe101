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

// Package errorboundary isolates per-object deserialize failures so
// that one malformed object in a List/Watch response does not poison
// the whole page, per spec.md §4.6. It follows the same "decode into
// a typed form, fall back to a raw map on failure" idiom metac uses in
// third_party/kubernetes/unstructured.go and dynamic/object/metadata.go.
package errorboundary

import (
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/json"
)

// Entry holds the result of attempting to decode one object's raw
// JSON into a typed Object. When decoding fails, Entry still carries
// the object's metadata (namespace/name/uid/resourceVersion) pulled
// out of the raw form, so the object remains addressable by key and
// is not silently dropped from a list — only Decoded is unusable.
type Entry struct {
	// Decoded is the successfully parsed object, or nil if parsing
	// failed.
	Decoded interface{}
	// Meta is populated whenever the raw bytes are a JSON object, even
	// if the typed decode fails, by decoding them as unstructured
	// content first. It is nil when the raw bytes are not valid JSON.
	Meta metav1.Object
	// Err is the parse error, if any.
	Err error
}

// OK reports whether the object decoded successfully.
func (e Entry) OK() bool {
	return e.Err == nil
}

// Decode attempts to unmarshal raw into a new value produced by
// newTyped, and always additionally unmarshals raw into an
// *unstructured.Unstructured to recover at least the object's
// metadata even when the typed decode fails.
func Decode(raw []byte, newTyped func() interface{}) Entry {
	var u unstructured.Unstructured
	if err := json.Unmarshal(raw, &u.Object); err != nil {
		// Not even valid JSON / not an object at all: we genuinely
		// cannot recover a key for this entry.
		return Entry{Err: errors.Wrap(err, "decode object metadata")}
	}

	typed := newTyped()
	if err := json.Unmarshal(raw, typed); err != nil {
		return Entry{Meta: &u, Err: errors.Wrap(err, "decode typed object")}
	}
	return Entry{Decoded: typed, Meta: &u}
}

// AsDeleted reports whether the caller should treat this entry as a
// synthetic Deleted event rather than propagating the error, which is
// a reasonable default for reflectors that would rather forget a
// malformed object than wedge the whole cache.
func (e Entry) AsDeleted() bool {
	return !e.OK() && e.Meta != nil
}
