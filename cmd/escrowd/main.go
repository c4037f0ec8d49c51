package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"assetescrow/config"
	"assetescrow/core"
	"assetescrow/core/runtime"
	"assetescrow/core/types"
	"assetescrow/gateway/middleware"
	"assetescrow/native/nft"
	"assetescrow/native/transfer"
	"assetescrow/observability/logging"
	telemetry "assetescrow/observability/otel"
	"assetescrow/rpc"
	"assetescrow/storage"
	"assetescrow/storage/receipts"
)

const serviceName = "escrowd"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFile := flag.String("config", "./escrowd.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(serviceName, cfg.Env, logging.Options{File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("escrowd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Version:     version,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Interval:    cfg.Telemetry.Interval(),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	var sinks []runtime.ReceiptSink
	if path := cfg.ReceiptDBPath(); path != "" {
		archive, err := receipts.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("open receipt archive: %w", err)
		}
		defer archive.Close()
		sinks = append(sinks, archive)
		logger.Info("receipt archive enabled", slog.String("path", path))
	}

	registry, localRegistry := buildRegistry(cfg, logger)

	node, err := core.NewNode(db, core.Options{
		Contract:      types.AccountID(cfg.ContractAccount),
		RegistryID:    types.AccountID(cfg.RegistryAccount),
		Registry:      registry,
		Gas:           cfg.GasTGas * transfer.TeraGas,
		Authorizer:    runtime.NewAllowList(cfg.Admins...),
		GateOnPhase:   cfg.GateOnPhase,
		QueueCapacity: cfg.QueueCapacity,
		ReceiptSinks:  sinks,
		Logger:        logger.With(slog.String("component", "node")),
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	current, err := node.CurrentVersion()
	if err != nil {
		return err
	}
	logger.Info("escrow state loaded",
		slog.String("contract", cfg.ContractAccount),
		slog.String("version", current.String()),
		slog.Bool("gateOnPhase", cfg.GateOnPhase))

	node.Start(ctx, cfg.Workers)
	defer node.Executor().Wait()

	serverCfg := rpc.ServerConfig{
		Logger:     logger.With(slog.String("component", "rpc")),
		AdminScope: cfg.Auth.AdminScope,
		RateLimit: middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		LogRequests:       cfg.Env == "dev",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
	if secret := cfg.Auth.ResolveSecret(); secret != "" {
		serverCfg.Auth = middleware.NewAuthenticator(middleware.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger)
	} else {
		logger.Warn("no JWT secret configured; administrative methods are disabled")
	}
	if localRegistry != nil {
		serverCfg.Registry = nft.Handler(localRegistry)
	}

	server, err := rpc.NewServer(node, serverCfg)
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}
	if err := server.Serve(ctx, cfg.ListenAddress); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("escrowd stopped")
	return nil
}

// buildRegistry returns the ownership registry client. Without a configured
// RegistryURL an in-memory registry is created for development. It trusts the
// sender of every request, so the RPC server only mounts it under /registry
// for admin-scoped tokens.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (transfer.Registry, *nft.MemRegistry) {
	if url := strings.TrimSpace(cfg.RegistryURL); url != "" {
		logger.Info("using remote ownership registry", slog.String("url", url))
		return nft.NewRPCClient(url, cfg.RegistryToken), nil
	}
	logger.Warn("no RegistryURL configured; using a development in-memory ownership registry")
	reg := nft.NewMemRegistry()
	return reg, reg
}
