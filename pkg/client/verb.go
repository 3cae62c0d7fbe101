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

// Package client builds typed HTTP requests against a Kubernetes API
// server for one Resource and decodes the corresponding response.
// It mirrors the way metac's dynamic/clientset.ResourceClient wraps a
// dynamic.ResourceInterface, generalized to arbitrary resource
// descriptors and response shapes instead of being hard-wired to
// unstructured.Unstructured.
package client

import (
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	kcschema "github.com/kubecore/kubecore/pkg/schema"
)

// PatchType selects the wire content type of a Patch body.
type PatchType int

const (
	// JSONPatch is RFC6902 JSON Patch.
	JSONPatch PatchType = iota
	// MergePatch is RFC7396 JSON Merge Patch.
	MergePatch
	// StrategicMergePatch is the Kubernetes strategic merge patch.
	StrategicMergePatch
	// ApplyPatch is server-side apply; it requires a FieldManager.
	ApplyPatch
)

// ContentType returns the wire Content-Type header for p.
func (p PatchType) ContentType() string {
	switch p {
	case JSONPatch:
		return "application/json-patch+json"
	case MergePatch:
		return "application/merge-patch+json"
	case StrategicMergePatch:
		return "application/strategic-merge-patch+json"
	case ApplyPatch:
		return "application/apply-patch+yaml"
	default:
		return "application/merge-patch+json"
	}
}

// Patch is a patch document plus its wire type.
type Patch struct {
	Type PatchType
	Data []byte
}

// ListOptions controls List and Watch requests.
type ListOptions struct {
	LabelSelector       string
	FieldSelector       string
	Limit               int64
	Continue            string
	ResourceVersion     string
	AllowWatchBookmarks bool
	TimeoutSeconds      *int64
}

// DeleteOptions controls Delete requests. GracePeriodSeconds and
// PropagationPolicy are sent as query parameters; Preconditions is not
// sent. DeleteCollection takes ListOptions instead.
type DeleteOptions struct {
	GracePeriodSeconds *int64
	PropagationPolicy  string
	Preconditions      *Preconditions
}

// Preconditions constrain a delete/update to a known resourceVersion
// and/or uid, for optimistic concurrency.
type Preconditions struct {
	UID             string
	ResourceVersion string
}

// PatchOptions controls Patch requests.
type PatchOptions struct {
	FieldManager string
	Force        bool
	DryRun       bool
}

// CreateOptions controls Create requests.
type CreateOptions struct {
	FieldManager string
	DryRun       bool
}

// Verb describes one action against base (the Resource's URL path,
// already namespace-scoped if applicable).
type Verb struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// ContentType overrides the default application/json request
	// content type, used by Patch.
	ContentType string
}

func newQuery() url.Values {
	return url.Values{}
}

func setIfTrue(q url.Values, key string, v bool) {
	if v {
		q.Set(key, "true")
	}
}

func setIfNonEmpty(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

// Get builds a Get verb for the named object.
func Get(base, name string) Verb {
	return Verb{Method: "GET", Path: joinPath(base, name)}
}

// List builds a List verb.
func List(base string, opts ListOptions) Verb {
	q := newQuery()
	setIfNonEmpty(q, "labelSelector", opts.LabelSelector)
	setIfNonEmpty(q, "fieldSelector", opts.FieldSelector)
	if opts.Limit > 0 {
		q.Set("limit", strconv.FormatInt(opts.Limit, 10))
	}
	setIfNonEmpty(q, "continue", opts.Continue)
	return Verb{Method: "GET", Path: base, Query: q}
}

// Watch builds a Watch verb.
func Watch(base string, opts ListOptions) Verb {
	q := newQuery()
	q.Set("watch", "1")
	setIfNonEmpty(q, "labelSelector", opts.LabelSelector)
	setIfNonEmpty(q, "fieldSelector", opts.FieldSelector)
	setIfNonEmpty(q, "resourceVersion", opts.ResourceVersion)
	setIfTrue(q, "allowWatchBookmarks", opts.AllowWatchBookmarks)
	if opts.TimeoutSeconds != nil {
		q.Set("timeoutSeconds", strconv.FormatInt(*opts.TimeoutSeconds, 10))
	}
	return Verb{Method: "GET", Path: base, Query: q}
}

// Create builds a Create verb. It fails with ErrUnnamedObject if body
// carries no metadata.name; callers pass the already-encoded JSON plus
// the object's name for that check since Verb itself stays untyped.
func Create(base, name string, body []byte, opts CreateOptions) (Verb, error) {
	if name == "" {
		return Verb{}, errors.WithStack(ErrUnnamedObject)
	}
	q := newQuery()
	setIfNonEmpty(q, "fieldManager", opts.FieldManager)
	setIfTrue(q, "dryRun", opts.DryRun)
	return Verb{Method: "POST", Path: base, Query: q, Body: body}, nil
}

// Delete builds a Delete verb for the named object.
func Delete(base, name string, opts DeleteOptions) Verb {
	q := newQuery()
	setIfNonEmpty(q, "propagationPolicy", opts.PropagationPolicy)
	if opts.GracePeriodSeconds != nil {
		q.Set("gracePeriodSeconds", strconv.FormatInt(*opts.GracePeriodSeconds, 10))
	}
	return Verb{Method: "DELETE", Path: joinPath(base, name), Query: q}
}

// DeleteCollection builds a DeleteCollection verb for every object
// matching opts' selectors.
func DeleteCollection(base string, lopts ListOptions) Verb {
	q := newQuery()
	setIfNonEmpty(q, "labelSelector", lopts.LabelSelector)
	setIfNonEmpty(q, "fieldSelector", lopts.FieldSelector)
	return Verb{Method: "DELETE", Path: base, Query: q}
}

// PatchVerb builds a Patch verb for the named object.
func PatchVerb(base, name string, p Patch, opts PatchOptions) (Verb, error) {
	if p.Type == ApplyPatch && opts.FieldManager == "" {
		return Verb{}, errors.New("apply patch requires a FieldManager")
	}
	q := newQuery()
	setIfNonEmpty(q, "fieldManager", opts.FieldManager)
	setIfTrue(q, "force", opts.Force)
	setIfTrue(q, "dryRun", opts.DryRun)
	return Verb{
		Method:      "PATCH",
		Path:        joinPath(base, name),
		Query:       q,
		Body:        p.Data,
		ContentType: p.Type.ContentType(),
	}, nil
}

// Replace builds a Replace (PUT) verb for the named object.
func Replace(base, name string, body []byte) Verb {
	return Verb{Method: "PUT", Path: joinPath(base, name), Body: body}
}

// LogStream builds a verb for the log subresource byte stream.
func LogStream(base, name string, container string, follow bool, tailLines *int64) Verb {
	q := newQuery()
	setIfNonEmpty(q, "container", container)
	setIfTrue(q, "follow", follow)
	if tailLines != nil {
		q.Set("tailLines", strconv.FormatInt(*tailLines, 10))
	}
	return Verb{Method: "GET", Path: joinPath(base, name, "log"), Query: q}
}

// Subresource builds a GET verb against an arbitrary named subresource
// (scale, status) of one object.
func Subresource(base, name, sub string) Verb {
	return Verb{Method: "GET", Path: joinPath(base, name, sub)}
}

// ReplaceSubresource builds a PUT verb against a subresource.
func ReplaceSubresource(base, name, sub string, body []byte) Verb {
	return Verb{Method: "PUT", Path: joinPath(base, name, sub), Body: body}
}

// PatchSubresource builds a PATCH verb against a subresource.
func PatchSubresource(base, name, sub string, p Patch, opts PatchOptions) (Verb, error) {
	if p.Type == ApplyPatch && opts.FieldManager == "" {
		return Verb{}, errors.New("apply patch requires a FieldManager")
	}
	q := newQuery()
	setIfNonEmpty(q, "fieldManager", opts.FieldManager)
	setIfTrue(q, "force", opts.Force)
	return Verb{
		Method:      "PATCH",
		Path:        joinPath(base, name, sub),
		Query:       q,
		Body:        p.Data,
		ContentType: p.Type.ContentType(),
	}, nil
}

// ExecConnectionParams describes the query parameters for an
// exec/attach WebSocket upgrade.
type ExecConnectionParams struct {
	Container string
	Command   []string
	Stdin     bool
	Stdout    bool
	Stderr    bool
	TTY       bool
}

// Exec builds a verb describing an exec upgrade request. The caller
// turns this into an actual WebSocket connection via
// pkg/wsstream.Upgrader.
func Exec(base, name string, p ExecConnectionParams) Verb {
	q := newQuery()
	setIfNonEmpty(q, "container", p.Container)
	for _, c := range p.Command {
		q.Add("command", c)
	}
	setIfTrue(q, "stdin", p.Stdin)
	setIfTrue(q, "stdout", p.Stdout)
	setIfTrue(q, "stderr", p.Stderr)
	setIfTrue(q, "tty", p.TTY)
	return Verb{Method: "GET", Path: joinPath(base, name, "exec"), Query: q}
}

// Attach builds a verb describing an attach upgrade request.
func Attach(base, name string, p ExecConnectionParams) Verb {
	q := newQuery()
	setIfNonEmpty(q, "container", p.Container)
	setIfTrue(q, "stdin", p.Stdin)
	setIfTrue(q, "stdout", p.Stdout)
	setIfTrue(q, "stderr", p.Stderr)
	setIfTrue(q, "tty", p.TTY)
	return Verb{Method: "GET", Path: joinPath(base, name, "attach"), Query: q}
}

// PortForward builds a verb describing a port-forward upgrade request.
func PortForward(base, name string) Verb {
	return Verb{Method: "GET", Path: joinPath(base, name, "portforward")}
}

func joinPath(base string, segments ...string) string {
	p := base
	for _, s := range segments {
		if s == "" {
			continue
		}
		p = p + "/" + s
	}
	return p
}

// BasePath returns the Resource's collection URL path under the given
// namespace, per spec.md §4.1.
func BasePath(r kcschema.Resource, namespace string) string {
	return r.URLPath(namespace)
}

// ErrUnnamedObject is returned by Create when the object has no
// metadata.name.
var ErrUnnamedObject = errors.New("object has no metadata.name")
