/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command statefulset-scheduler runs the custom scheduler as a standalone
// process: it loads configuration, builds a client-go clientset, starts a
// metrics listener, and then runs the sequential pod-watch loop until the
// process is signalled to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/beergeek/statefulset-scheduler/pkg/apis/config"
	"github.com/beergeek/statefulset-scheduler/pkg/kubeclient"
	"github.com/beergeek/statefulset-scheduler/pkg/logging"
	"github.com/beergeek/statefulset-scheduler/pkg/metrics"
	"github.com/beergeek/statefulset-scheduler/pkg/scheduling"
)

func main() {
	os.Exit(run())
}

// run contains the whole startup sequence so that every failure path can
// return a definite exit code rather than calling os.Exit from the middle of
// setup: exit 1 on any startup dependency failure, exit 0 only on orderly
// shutdown, which in practice means a caller-cancelled context.
func run() int {
	schedulerName := os.Getenv("SNAME")
	if schedulerName == "" {
		fmt.Fprintln(os.Stderr, "SNAME environment variable is required")
		return 1
	}

	settings, err := config.Load("", schedulerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		return 1
	}

	log := logging.New(settings.Debug())
	defer log.Sync() //nolint:errcheck

	ctx := logging.ToContext(context.Background(), log)
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	restConfig, err := buildRestConfig()
	if err != nil {
		log.Errorw("building kubernetes client config", "error", err)
		return 1
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Errorw("building kubernetes clientset", "error", err)
		return 1
	}
	client := kubeclient.New(clientset)

	metrics.MustRegister()
	serveMetrics(ctx, log)

	orchestrator := scheduling.NewOrchestrator(client, settings)
	log.Infow("starting watch loop", "schedulerName", schedulerName, "namespace", settings.Namespace)
	for {
		err := scheduling.Run(ctx, client, orchestrator, settings.Namespace, schedulerName)
		if ctx.Err() != nil {
			return 0
		}
		if err != nil {
			log.Errorw("watch loop exited", "error", err)
			return 1
		}
		log.Infow("watch stream closed, re-establishing", "namespace", settings.Namespace)
	}
}

// buildRestConfig prefers the in-cluster service account, falling back to
// the default kubeconfig loading rules for local development.
func buildRestConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		clientcmd.NewDefaultClientConfigLoadingRules(),
		&clientcmd.ConfigOverrides{},
	).ClientConfig()
}

// serveMetrics starts the prometheus HTTP endpoint in the background; its
// failure is not fatal to scheduling: metrics are observability, not a
// scheduling dependency.
func serveMetrics(ctx context.Context, log interface{ Errorw(string, ...interface{}) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
