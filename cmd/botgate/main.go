// Package main provides the entry point for the botgate server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenceline/botgate/internal/api"
	"github.com/fenceline/botgate/internal/auth"
	"github.com/fenceline/botgate/internal/cdn"
	"github.com/fenceline/botgate/internal/chain"
	"github.com/fenceline/botgate/internal/config"
	"github.com/fenceline/botgate/internal/grants"
	"github.com/fenceline/botgate/internal/ledger"
	"github.com/fenceline/botgate/internal/metrics"
	"github.com/fenceline/botgate/internal/payment"
	"github.com/fenceline/botgate/internal/protect"
	"github.com/fenceline/botgate/internal/storage"
)

const version = "0.1.0"

func main() {
	createToken := flag.String("create-owner-token", "", "create an owner API token for the given owner id and exit")
	tokenName := flag.String("token-name", "default", "name for the created owner token")
	flag.Parse()

	if err := run(*createToken, *tokenName); err != nil {
		fmt.Fprintf(os.Stderr, "botgate: %v\n", err)
		os.Exit(1)
	}
}

func run(createTokenOwner, tokenName string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close() //nolint:errcheck

	// Token bootstrap mode: create a token and exit without serving.
	if createTokenOwner != "" {
		return createOwnerToken(store, createTokenOwner, tokenName)
	}

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	replayLedger := ledger.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer replayLedger.Close() //nolint:errcheck

	var cdnOpts []cdn.Option
	if cfg.CDNAPIURL != "" {
		cdnOpts = append(cdnOpts, cdn.WithBaseURL(cfg.CDNAPIURL))
	}
	cdnClient := cdn.NewClient(cfg.CDNAPIKey, cdnOpts...)

	chainClient := chain.NewClient(cfg.ChainRPCURL)
	verifier := payment.NewVerifier(chainClient, logger)

	machine := protect.NewMachine(store, cdnClient, cfg.EncryptionKey, logger)
	manager := grants.NewManager(store, cdnClient, verifier, replayLedger, cfg.AccessZoneID, grants.Policy{
		GrantTTL:       cfg.GrantTTL,
		WaitPollStart:  cfg.WaitPollStart,
		WaitPollFactor: cfg.WaitPollFactor,
		WaitPollCap:    cfg.WaitPollCap,
		WaitCeiling:    cfg.WaitCeiling,
		MinRemaining:   cfg.MinRemaining,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sweeper := grants.NewSweeper(store, cdnClient, cfg.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	validator := auth.NewValidator(store)
	handler := api.NewHandler(machine, manager, store, replayLedger, validator, cfg, logger)

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("botgate starting", "version", version, "addr", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listener starting", "addr", cfg.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("botgate stopped")
	return nil
}

// createOwnerToken generates a management token, stores its hash, and prints
// the plaintext once. There is no way to recover it later.
func createOwnerToken(store *storage.SQLiteStorage, ownerID, name string) error {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := "bgt_" + hex.EncodeToString(raw)

	hash, err := storage.HashToken(token)
	if err != nil {
		return fmt.Errorf("hashing token: %w", err)
	}

	if _, err := store.CreateOwnerToken(context.Background(), ownerID, name, hash); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	fmt.Printf("owner token for %s (shown once):\n%s\n", ownerID, token)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
