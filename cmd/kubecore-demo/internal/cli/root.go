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

package cli

import (
	"context"
	"flag"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opencensus.io/stats/view"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	_ "k8s.io/client-go/plugin/pkg/client/auth/oidc"
)

// globalFlags mirrors the flag set metac's main.go registers for its
// single server loop, generalized to every subcommand below.
type globalFlags struct {
	clientConfigPath string
	clientGoQPS      float32
	clientGoBurst    int
	debugAddr        string
}

var flags globalFlags

// NewRootCommand builds the kubecore-demo CLI: one subcommand per
// core component (watch, elect, convert-webhook), sharing the same
// kubeconfig/QPS flags and debug endpoint that metac's main.go used
// for its single fixed server loop.
func NewRootCommand() *cobra.Command {
	var stopDebugEndpoint func()

	root := &cobra.Command{
		Use:   "kubecore-demo",
		Short: "Exercises the kubecore client/watcher/reflector/elector/conversion stack",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			stop, err := serveDebugEndpoint()
			if err != nil {
				return err
			}
			stopDebugEndpoint = stop
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopDebugEndpoint != nil {
				stopDebugEndpoint()
			}
		},
	}

	var flagSet *pflag.FlagSet = root.PersistentFlags()
	flagSet.StringVar(&flags.clientConfigPath, "client-config-path", "",
		"Path to kubeconfig file (same format as used by kubectl); if not specified, uses in-cluster config")
	flagSet.Float32Var(&flags.clientGoQPS, "client-go-qps", 5,
		"Number of queries per second the client is allowed to make")
	flagSet.IntVar(&flags.clientGoBurst, "client-go-burst", 10,
		"Allowed burst queries for the client")
	flagSet.StringVar(&flags.debugAddr, "debug-addr", ":9999",
		"The address to bind the debug http endpoint (Prometheus metrics)")

	// Merge glog's flags into the cobra/pflag flag set, the way every
	// client-go-based CLI in this corpus does to keep glog usable
	// alongside cobra subcommands.
	flagSet.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(newWatchCommand())
	root.AddCommand(newElectCommand())
	root.AddCommand(newConvertWebhookCommand())

	return root
}

// buildConfig constructs a *rest.Config the same way metac's main.go
// does: kubeconfig file if given, else in-cluster auto-config.
func buildConfig() (*rest.Config, error) {
	var config *rest.Config
	var err error
	if flags.clientConfigPath != "" {
		glog.Infof("using current context from kubeconfig file: %v", flags.clientConfigPath)
		config, err = clientcmd.BuildConfigFromFlags("", flags.clientConfigPath)
	} else {
		glog.Info("no kubeconfig file specified: trying in-cluster auto-config")
		config, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build rest config")
	}
	config.QPS = flags.clientGoQPS
	config.Burst = flags.clientGoBurst
	return config, nil
}

// serveDebugEndpoint starts the Prometheus debug endpoint in the
// background and returns a function that shuts it down, mirroring
// main.go's "/metrics" wiring.
func serveDebugEndpoint() (func(), error) {
	exporter, err := prometheus.NewExporter(prometheus.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "create prometheus exporter")
	}
	view.RegisterExporter(exporter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter)
	srv := &http.Server{Addr: flags.debugAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("debug endpoint: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
