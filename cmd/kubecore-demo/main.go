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

// Command kubecore-demo exercises the core client/watcher/reflector/
// elector/conversion stack against a real API server, the way metac's
// main.go wired up its CRD and config-based servers: kubeconfig flags,
// glog logging, graceful SIGTERM shutdown and a Prometheus debug
// endpoint, but fronted by a cobra CLI with one subcommand per
// component instead of a single fixed server loop.
package main

import (
	"os"

	"github.com/golang/glog"

	"github.com/kubecore/kubecore/cmd/kubecore-demo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		glog.Errorf("kubecore-demo: %v", err)
		os.Exit(1)
	}
}
