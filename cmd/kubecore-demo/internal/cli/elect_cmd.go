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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	kcclient "github.com/kubecore/kubecore/pkg/client"
	"github.com/kubecore/kubecore/pkg/lease"
	kcschema "github.com/kubecore/kubecore/pkg/schema"
)

type electOptions struct {
	namespace string
	identity  string
	duration  time.Duration
}

// newElectCommand exercises C8 (the Lease elector): it races for a
// single Lease and, while holding it, blocks until SIGTERM, releasing
// cleanly on shutdown — the demo's "do work while leader" task is
// just waiting, since the interesting behavior is the elector
// lifecycle itself.
func newElectCommand() *cobra.Command {
	opts := &electOptions{duration: 15 * time.Second}

	cmd := &cobra.Command{
		Use:   "elect <lease-name>",
		Short: "Acquire and hold a Lease until signaled, demonstrating the elector lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElect(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.namespace, "namespace", "default", "Namespace the Lease object lives in")
	cmd.Flags().StringVar(&opts.identity, "identity", defaultIdentity(), "Holder identity to race with")
	cmd.Flags().DurationVar(&opts.duration, "lease-duration", opts.duration, "Lease duration")

	return cmd
}

func defaultIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		return "kubecore-demo"
	}
	return host
}

func runElect(ctx context.Context, name string, opts *electOptions) error {
	config, err := buildConfig()
	if err != nil {
		return err
	}
	client, err := newClient(config)
	if err != nil {
		return err
	}

	leasesResource := kcschema.New("coordination.k8s.io", "v1", "Lease", "leases")
	basePath := kcclient.BasePath(leasesResource, opts.namespace)

	elector := lease.New(client, basePath, opts.namespace, name, opts.identity, opts.duration)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("received %q signal, releasing lease %q", sig, name)
		cancel()
	}()

	glog.Infof("identity %q racing for lease %s/%s", opts.identity, opts.namespace, name)
	_, err = elector.Run(ctx, func(ctx context.Context) (interface{}, error) {
		glog.Infof("identity %q is leader for lease %s/%s", opts.identity, opts.namespace, name)
		<-ctx.Done()
		return nil, nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
