// Command bytehotd runs the hot-swap agent as a standalone process:
// it loads ConfigurationPort (spec.md §6), attaches the production
// adapters, and runs a session until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bytehotd/bytehotd/internal/adapters/fsport"
	"github.com/bytehotd/bytehotd/internal/adapters/journalsink"
	"github.com/bytehotd/bytehotd/internal/adapters/jvmtiport"
	"github.com/bytehotd/bytehotd/internal/adapters/sysclock"
	"github.com/bytehotd/bytehotd/internal/config"
	"github.com/bytehotd/bytehotd/internal/errors/quarantinecache"
	"github.com/bytehotd/bytehotd/internal/httpapi"
	"github.com/bytehotd/bytehotd/internal/metrics"
	"github.com/bytehotd/bytehotd/internal/obslog"
	"github.com/bytehotd/bytehotd/internal/session"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "bytehotd",
		Short: "Hot-swap agent for JVM bytecode redefinition",
		Long:  "bytehotd watches compiled class output, validates and redefines changed classes in a running JVM, and journals every step for replay.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")

	root.AddCommand(runCommand(), validateConfigCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateConfigCommand() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration without starting the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("configuration valid: %d watch root(s), debounce=%dms\n", len(cfg.WatchRoots), cfg.DebounceMS)
			if dump {
				out, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("bytehotd: render effective config: %w", err)
				}
				fmt.Println("---")
				fmt.Print(string(out))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the fully resolved configuration as YAML")
	return cmd
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attach and run the agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("bytehotd: load config: %w", err)
	}

	logger := obslog.New(cfg.ToObslogConfig())
	reg := prometheus.NewRegistry()
	m := metrics.New("bytehot", reg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	journalWriter, journalCloser, err := journalsink.Open(ctx, cfg.ToJournalConfig(), reg)
	if err != nil {
		return fmt.Errorf("bytehotd: open journal: %w", err)
	}
	defer journalCloser.Close()

	inst := jvmtiport.New()
	fs := fsport.New(logger)
	clock := sysclock.New()

	sess, err := session.New(inst, fs, journalWriter, clock, cfg.ToSessionConfig())
	if err != nil {
		return fmt.Errorf("bytehotd: construct session: %w", err)
	}
	sess.WithMetrics(m)

	if cfg.Journal.Driver != "" && cfg.Journal.Driver != "memory" {
		cache, cacheErr := quarantinecache.NewFromAddr(ctx, os.Getenv("BYTEHOT_QUARANTINE_REDIS_ADDR"), logger)
		if cacheErr != nil {
			logger.Warn("quarantine cache unavailable, running without cross-process mirror", "error", cacheErr)
		} else {
			sess.Coordinator.WithMirror(cache)
			defer cache.Close()
		}
	}

	var servers []*http.Server

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux}
		servers = append(servers, metricsSrv)
		go func() {
			logger.Info("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if cfg.HTTP.Enabled {
		admin := httpapi.New(logger, sess.Coordinator, journalWriter)
		admin.Start(ctx)
		adminSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: admin.Router()}
		servers = append(servers, adminSrv)
		go func() {
			logger.Info("admin server starting", "addr", cfg.HTTP.Addr)
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin server failed", "error", err)
			}
		}()
	}

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("bytehotd: start session: %w", err)
	}
	logger.Info("session started", "session_id", sess.ID(), "watch_roots", len(cfg.WatchRoots))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sess.Shutdown("operator requested shutdown")
	for _, srv := range servers {
		_ = srv.Shutdown(ctx)
	}
	return nil
}
