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

	"k8s.io/apimachinery/pkg/util/json"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

// Page is one page of a List response: the raw items plus the
// resourceVersion of that page and the continue token for the next
// one (empty when this was the last page).
type Page struct {
	Items           []json.RawMessage
	ResourceVersion string
	Continue        string
}

// Source is everything the Watcher needs from a Resource: paginated
// listing and a watch stream. kcclient.Client plus a Resource's base
// path satisfies this via ClientSource.
type Source interface {
	List(ctx context.Context, opts kcclient.ListOptions) (Page, error)
	Watch(ctx context.Context, opts kcclient.ListOptions) (*kcclient.EventStream, error)
}

// objectList mirrors the wire shape of a Kubernetes List response
// closely enough to pull out items and the list-level resourceVersion
// without needing the concrete typed list type.
type objectList struct {
	Metadata struct {
		ResourceVersion string `json:"resourceVersion"`
		Continue        string `json:"continue"`
	} `json:"metadata"`
	Items []json.RawMessage `json:"items"`
}

// ClientSource adapts a kcclient.Client bound to one Resource's base
// path into a watch.Source.
type ClientSource struct {
	Client   *kcclient.Client
	BasePath string
}

// List fetches one page via the client's List verb.
func (s *ClientSource) List(ctx context.Context, opts kcclient.ListOptions) (Page, error) {
	var list objectList
	if err := s.Client.RequestInto(ctx, kcclient.List(s.BasePath, opts), &list); err != nil {
		return Page{}, err
	}
	return Page{
		Items:           list.Items,
		ResourceVersion: list.Metadata.ResourceVersion,
		Continue:        list.Metadata.Continue,
	}, nil
}

// Watch opens a watch stream via the client's Watch verb.
func (s *ClientSource) Watch(ctx context.Context, opts kcclient.ListOptions) (*kcclient.EventStream, error) {
	return s.Client.RequestEvents(ctx, kcclient.Watch(s.BasePath, opts))
}
