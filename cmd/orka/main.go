// Package main is the entry point for the orka binary: a CLI
// embedding internal/api directly rather than talking to it over a
// network transport (spec's façade is explicitly transport-agnostic).
// Subcommands: discover, get, list, watch, search, apply, diff, logs,
// scale, restart, delete-pod, cordon, drain, stats. There is no exec or
// port-forward subcommand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/api"
	"github.com/orka-sh/orka/internal/apply"
	"github.com/orka-sh/orka/internal/config"
	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/hub"
	"github.com/orka-sh/orka/internal/metrics"
	"github.com/orka-sh/orka/internal/ops"
	"github.com/orka-sh/orka/internal/persist"
	"github.com/orka-sh/orka/internal/providers/kubernetes"
	"github.com/orka-sh/orka/internal/schema"
	"github.com/orka-sh/orka/internal/watch"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3"), the same convention the
// teacher's cmd/otterscale uses.
var version = "devel"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "orka",
		Short:         "Orka: a fast, cached read/write data plane for exploring a Kubernetes cluster.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	conf, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := conf.BindFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	var app *application
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(conf)
		if err != nil {
			return err
		}
		app = a
		return nil
	}

	addCommands(rootCmd, func() *application { return app })

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return err
	}
	if app != nil {
		app.Close()
	}
	return nil
}

// application bundles every long-lived collaborator bootstrap wires up,
// so subcommands only need the one facade plus whatever they need to
// clean up on exit.
type application struct {
	svc        *api.Service
	hub        *hub.Hub
	store      *persist.LogStore
	metricsSrv cleanupFunc
}

type cleanupFunc func()

// Close tears down everything bootstrap started, in reverse order.
func (a *application) Close() {
	if a.metricsSrv != nil {
		a.metricsSrv()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// bootstrap wires the full dependency graph by hand: config -> cluster
// session -> provider clients -> discovery cache -> schema fetcher ->
// engines (watch/apply/ops) -> schema resolver -> hub -> facade. The
// teacher assembles an equivalent graph via Google Wire codegen;
// Orka's graph is small and linear enough that hand-wiring it here is
// clearer than adding a codegen step (see DESIGN.md).
func bootstrap(conf *config.Config) (*application, error) {
	session, err := kubernetes.NewSession(conf.Kubeconfig(), conf.KubeContext())
	if err != nil {
		return nil, fmt.Errorf("connecting to cluster: %w", err)
	}

	rawDiscovery := kubernetes.NewDiscoveryClient(session)
	discovery := core.NewDiscoveryCache(rawDiscovery, conf.DiscoveryTTLSecs())

	resources := kubernetes.NewResourceRepo(session)
	runtime := kubernetes.NewRuntimeRepo(session)
	capabilities := kubernetes.NewCapabilityRepo(session)

	var collector *metrics.Collector
	var metricsShutdown cleanupFunc
	if addr := conf.MetricsAddr(); addr != "" {
		collector = metrics.New()
		srv := collector.Serve(addr)
		metricsShutdown = func() {
			shutdownCtx, cancel := metrics.ShutdownContext()
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
	}

	var fetcher *schema.Fetcher
	if !conf.SchemaOfflineOnly() {
		fetcher, err = schema.NewFetcher(session.RESTConfig())
		if err != nil {
			return nil, fmt.Errorf("building schema fetcher: %w", err)
		}
	}
	resolver := api.NewSchemaResolver(fetcher, conf.SchemaBuiltinSkip(), conf.SchemaOfflineOnly())

	watcher := watch.NewService(resources, discovery, conf.RelistSecs(), conf.WatchBackoffMaxSecs(), conf.SnapshotPageLimit())
	watcher.SetMetrics(collector)

	store, err := persist.Open(conf.DBPath(), conf.ZstdLevel())
	if err != nil {
		return nil, fmt.Errorf("opening last-applied store: %w", err)
	}

	var lastApplied core.LastAppliedStore = store
	if conf.DisableLastApplied() {
		lastApplied = nil
	}
	applySvc := apply.NewService(discovery, resources, lastApplied, conf.MaxYAMLBytes(), conf.MaxYAMLNodes(), conf.DisableApplyPreflight(), conf.DisableLastApplied())

	opsSvc := ops.NewService(runtime, resources, discovery, capabilities, conf.OpsQueueCap(), conf.DrainTimeoutSecs(), conf.DrainPollSecs())

	h := hub.New(watcher, resolver.Resolve, conf.CoalescerCap(), conf.QueueCap())

	svc := api.NewService(discovery, resources, h, watcher, resolver, applySvc, opsSvc, lastApplied, api.Config{
		MaxPostingsPerKey:   conf.MaxPostingsPerKey(),
		MaxIndexBytes:       conf.MaxIndexBytes(),
		RelistSecs:          conf.RelistSecs(),
		WatchBackoffMaxSecs: conf.WatchBackoffMaxSecs(),
		MetricsAddr:         conf.MetricsAddr(),
	})
	svc.SetMetrics(collector)

	return &application{svc: svc, hub: h, store: store, metricsSrv: metricsShutdown}, nil
}
