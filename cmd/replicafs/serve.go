package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // served only on --debug-addr
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"replicafs/pkg/config"
	"replicafs/pkg/crypto"
	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/provider/factory"
	"replicafs/pkg/registry"
	"replicafs/pkg/server/gateway"
)

var serveFlagKeys = map[string]string{
	"health-check-interval": "health_check.interval",
	"health-check-timeout":  "health_check.timeout",
	"no-health-checks":      "health_check.disabled",
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the replicafs gateway",
		Long: `Start the gateway over the providers listed in the config file. Every
setting can also be given as a flag or as a REPLICAFS_<KEY> environment
variable (e.g. REPLICAFS_REDUNDANCY=triple, REPLICAFS_HEALTH_CHECK_INTERVAL=1m).`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "address the gateway listens on")
	flags.String("redundancy", "dual", "redundancy level (single, dual, triple, maximum)")
	flags.String("preferred", "", "provider that wins health score ties")
	flags.Duration("call-timeout", 30*time.Second, "timeout of each provider call")
	flags.Duration("health-check-interval", 5*time.Minute, "interval between provider health checks")
	flags.Duration("health-check-timeout", 10*time.Second, "timeout of each health probe")
	flags.Bool("no-health-checks", false, "disable the periodic health checker")
	flags.String("debug-addr", "", "serve pprof on this address (e.g. localhost:6060)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}
	if err := cfg.ValidateGateway(); err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	reg, err := registry.New(registry.Config{
		Level:               cfg.Redundancy,
		Preferred:           cfg.Preferred,
		CallTimeout:         cfg.CallTimeout,
		HealthCheckInterval: cfg.HealthCheck.Interval,
		HealthCheckTimeout:  cfg.HealthCheck.Timeout,
		DisableHealthChecks: cfg.HealthCheck.Disabled,
		Metrics:             recorder,
	})
	if err != nil {
		return err
	}
	if err := registerProviders(reg, cfg.Providers); err != nil {
		return err
	}

	if debugAddr, _ := cmd.Flags().GetString("debug-addr"); debugAddr != "" {
		startDebugServer(debugAddr)
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := gateway.New(gateway.Config{Registry: reg, Metrics: recorder, Version: Version})
	return srv.Start(ctx, cfg.Listen)
}

func registerProviders(reg *registry.Registry, providers []config.ProviderConfig) error {
	cipher := crypto.NewXChaCha()
	for _, providerCfg := range providers {
		p, err := factory.Build(providerCfg, cipher)
		if err != nil {
			return err
		}
		if err := reg.Register(providerCfg.Name, p); err != nil {
			return err
		}
		log.Info().
			Str("provider", providerCfg.Name).
			Str("type", providerCfg.Type).
			Bool("encrypt", providerCfg.Encrypt).
			Msg("Provider configured")
	}
	return nil
}

func startDebugServer(addr string) {
	go func() {
		log.Info().Str("addr", addr).Msg("Starting debug server")
		server := &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Debug server failed")
		}
	}()
}

// contextOrBackground keeps commands runnable outside Execute, e.g. from tests.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
