package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/chrischabot/shardeum/config"
	"github.com/chrischabot/shardeum/core/bootstrap"
	"github.com/chrischabot/shardeum/core/host"
	"github.com/chrischabot/shardeum/crypto"
	"github.com/chrischabot/shardeum/observability"
	"github.com/chrischabot/shardeum/observability/logging"
	telemetry "github.com/chrischabot/shardeum/observability/otel"
	"github.com/chrischabot/shardeum/rpc"
	"github.com/chrischabot/shardeum/storage"
)

const (
	serviceName   = "shardeumd"
	nodePassEnv   = "SHARDEUM_NODE_PASS"
	flagsEnv      = "SHARDEUM_FLAGS"
	shutdownGrace = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	firstSeed := flag.Bool("first-seed", false, "Run the genesis path regardless of the config file")
	flag.Parse()

	if err := run(*configFile, *firstSeed); err != nil {
		slog.Error("shardeumd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string, firstSeedFlag bool) error {
	env := strings.TrimSpace(os.Getenv("SHARDEUM_ENV"))
	slog.SetDefault(logging.Setup(serviceName, env))

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if raw := strings.TrimSpace(cfg.Logging.Level); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("invalid logging.Level %q: %w", raw, err)
		}
	}
	logger := logging.SetupWithOptions(serviceName, env, logging.Options{
		Level:      level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	flags, err := cfg.ResolveFlags()
	if err != nil {
		return fmt.Errorf("resolve flags: %w", err)
	}
	if raw := strings.TrimSpace(os.Getenv(flagsEnv)); raw != "" {
		overrides, err := config.ParseOverrides(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", flagsEnv, err)
		}
		if flags, err = flags.WithOverrides(overrides); err != nil {
			return fmt.Errorf("apply %s: %w", flagsEnv, err)
		}
	}
	if flags.VerboseLogs && level > slog.LevelDebug {
		logger.Info("VerboseLogs set; dispatcher debug lines need logging.Level = \"debug\"")
	}

	params, err := cfg.Network.Params()
	if err != nil {
		return err
	}

	passphrase, err := newPassphraseSource(nodePassEnv).Get()
	if err != nil {
		return err
	}
	nodeKey, err := crypto.LoadFromKeystore(cfg.NodeKeystorePath, passphrase)
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := host.New(db, host.Options{
		NodeKey:   nodeKey,
		FirstSeed: cfg.FirstSeed || firstSeedFlag,
		NetworkID: cfg.NetworkAccount,
		Flags:     flags,
		Params:    params,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	logger.Info("node starting",
		slog.String("node", node.NodeID()),
		slog.String("mode", string(cfg.Mode)),
		slog.Bool("firstSeed", node.IsFirstSeed()),
		logging.ShortID("publicKey", node.PublicKey()),
		slog.String("keystore", cfg.NodeKeystorePath))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    env,
		NodeID:         node.NodeID(),
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var genesis []bootstrap.GenesisAccount
	if cfg.GenesisFile != "" {
		if genesis, err = bootstrap.LoadGenesis(cfg.GenesisFile, cfg.Mode); err != nil {
			return err
		}
	}
	coordinator := bootstrap.New(node, flags, bootstrap.Settings{
		NetworkID: cfg.NetworkAccount,
		Mode:      cfg.Mode,
		Genesis:   genesis,
		Waits:     cfg.Bootstrap,
	}, bootstrap.WithLogger(logger), bootstrap.WithMetrics(observability.Bootstrap()))

	ready := coordinator.State().NetworkObserved
	if !flags.GlobalNetworkAccount {
		ready = func() bool { return true }
	}
	api := rpc.New(rpc.Config{Node: node, Ready: ready, Logger: logger})
	handler := api.Handler()
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(handler, serviceName)
	}
	server := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("rpc listening", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve rpc: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := coordinator.Run(gctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("bootstrap complete", slog.Bool("originator", coordinator.State().Originator()))
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("node stopped")
	return nil
}
