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

// Package schema describes a Kubernetes resource type in terms of its
// group/version/kind/plural/scope and knows how to build the REST path
// for it. Authoritative plurals should come from API discovery or from
// generated schemas; the Pluralize fallback here is deliberately
// best-effort.
package schema

import (
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Scope indicates whether a resource is bound to a namespace.
type Scope int

const (
	// Cluster scoped resources have no namespace.
	Cluster Scope = iota
	// Namespaced resources live inside a namespace.
	Namespaced
)

func (s Scope) String() string {
	if s == Namespaced {
		return "Namespaced"
	}
	return "Cluster"
}

// Resource is an immutable descriptor of a Kubernetes resource type.
// It is either supplied statically by generated code for built-in
// kinds, or constructed at runtime from API discovery for custom
// resources.
type Resource struct {
	Group   string
	Version string
	Plural  string
	Kind    string
	Scope   Scope
}

// New builds a Resource, guessing Plural from Kind if plural is empty.
func New(group, version, kind, plural string) Resource {
	if plural == "" {
		plural = Pluralize(kind)
	}
	return Resource{
		Group:   group,
		Version: version,
		Kind:    kind,
		Plural:  strings.ToLower(plural),
		Scope:   Namespaced,
	}
}

// WithScope returns a copy of r with the given scope.
func (r Resource) WithScope(scope Scope) Resource {
	r.Scope = scope
	return r
}

// APIVersion returns "version" for the core group, else "group/version".
func (r Resource) APIVersion() string {
	if r.Group == "" {
		return r.Version
	}
	return r.Group + "/" + r.Version
}

// GroupVersionKind returns the apimachinery GVK for this resource.
func (r Resource) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: r.Group, Version: r.Version, Kind: r.Kind}
}

// GroupVersionResource returns the apimachinery GVR for this resource.
func (r Resource) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: r.Group, Version: r.Version, Resource: r.Plural}
}

// URLPath returns the base collection path for this resource, e.g.
// "/api/v1/namespaces/foo/configmaps" or "/apis/apps/v1/deployments".
// If the resource is Namespaced and namespace is non-empty, the
// namespace segment is inserted.
func (r Resource) URLPath(namespace string) string {
	var b strings.Builder
	if r.Group == "" {
		b.WriteString("/api/")
		b.WriteString(r.Version)
	} else {
		b.WriteString("/apis/")
		b.WriteString(r.Group)
		b.WriteString("/")
		b.WriteString(r.Version)
	}
	if r.Scope == Namespaced && namespace != "" {
		b.WriteString("/namespaces/")
		b.WriteString(namespace)
	}
	b.WriteString("/")
	b.WriteString(r.Plural)
	return b.String()
}

// pluralExceptions are hard-coded overrides where the general suffix
// rules below would guess wrong, per spec.
var pluralExceptions = map[string]string{
	"endpoints":      "endpoints",
	"endpointslices": "endpointslices",
	"nodemetrics":    "nodes",
	"podmetrics":     "pods",
}

// Pluralize guesses the plural resource name for a Kind. Callers that
// know the authoritative plural (from discovery or generated schemas)
// should pass it explicitly to New instead of relying on this.
func Pluralize(kind string) string {
	lower := strings.ToLower(kind)
	if exc, ok := pluralExceptions[lower]; ok {
		return exc
	}

	switch {
	case strings.HasSuffix(lower, "s"),
		strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return lower + "es"
	case endsInConsonantY(lower):
		return lower[:len(lower)-1] + "ies"
	default:
		return lower + "s"
	}
}

func endsInConsonantY(s string) bool {
	if !strings.HasSuffix(s, "y") {
		return false
	}
	if len(s) < 2 {
		return false
	}
	switch s[len(s)-2] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	default:
		return true
	}
}
