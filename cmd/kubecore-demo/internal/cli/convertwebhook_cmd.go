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
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/kubecore/kubecore/pkg/conversion"
)

type convertWebhookOptions struct {
	addr    string
	tlsCert string
	tlsKey  string
}

// newConvertWebhookCommand exercises C9 (the conversion envelope): it
// serves a ConversionReview endpoint that stamps every object's
// apiVersion to the requested DesiredAPIVersion, leaving the rest of
// the object untouched. TLS material loading is an external
// collaborator per spec.md §1; this demo only serves plain TLS files
// handed to it on the command line, never OIDC/kubeconfig-style
// credential refresh.
func newConvertWebhookCommand() *cobra.Command {
	opts := &convertWebhookOptions{addr: ":8443"}

	cmd := &cobra.Command{
		Use:   "convert-webhook",
		Short: "Serve a CustomResourceDefinition conversion webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvertWebhook(context.Background(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "Address to serve the conversion webhook on")
	cmd.Flags().StringVar(&opts.tlsCert, "tls-cert", "", "Path to a TLS certificate (plain HTTP if empty)")
	cmd.Flags().StringVar(&opts.tlsKey, "tls-key", "", "Path to the TLS certificate's private key")

	return cmd
}

// stampAPIVersion is the demo's ConvertFunc: it rewrites apiVersion in
// place and passes every other field through untouched, preserving
// order per invariant 5 in spec.md §8.
func stampAPIVersion(objects []runtime.RawExtension, desiredAPIVersion string) ([]runtime.RawExtension, error) {
	out := make([]runtime.RawExtension, len(objects))
	for i, obj := range objects {
		u, err := decodeToMap(obj.Raw)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
		u["apiVersion"] = desiredAPIVersion
		raw, err := encodeMap(u)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d", i)
		}
		out[i] = runtime.RawExtension{Raw: raw}
	}
	return out, nil
}

func runConvertWebhook(ctx context.Context, opts *convertWebhookOptions) error {
	handler := &conversion.Handler{Convert: stampAPIVersion}

	mux := http.NewServeMux()
	mux.Handle("/convert", handler)
	srv := &http.Server{Addr: opts.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if opts.tlsCert != "" {
			glog.Infof("serving conversion webhook with TLS on %s", opts.addr)
			err = srv.ListenAndServeTLS(opts.tlsCert, opts.tlsKey)
		} else {
			glog.Infof("serving conversion webhook on %s (no TLS)", opts.addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		glog.Infof("received %q signal, shutting down conversion webhook", sig)
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
