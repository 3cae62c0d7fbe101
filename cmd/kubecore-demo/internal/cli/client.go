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

package cli

import (
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"k8s.io/client-go/rest"

	kcclient "github.com/kubecore/kubecore/pkg/client"
)

// newClient adapts a *rest.Config (built by buildConfig, using
// whichever external collaborator handled kubeconfig/OIDC/TLS) into a
// kcclient.Client: rest.TransportFor gives us the authenticated round
// tripper to build the Sender from, and config.Host the BaseURL,
// exactly the seam spec.md §1 draws between the core and its external
// collaborators.
func newClient(config *rest.Config) (*kcclient.Client, error) {
	transport, err := rest.TransportFor(config)
	if err != nil {
		return nil, errors.Wrap(err, "build transport from rest config")
	}
	base, err := url.Parse(config.Host)
	if err != nil {
		return nil, errors.Wrap(err, "parse rest config host as URL")
	}
	return kcclient.New(&http.Client{Transport: transport}, base), nil
}
