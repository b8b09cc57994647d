package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/backup"
	"github.com/dukerupert/splitbook/internal/config"
	"github.com/dukerupert/splitbook/internal/database"
	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/logging"
	"github.com/dukerupert/splitbook/internal/metrics"
	"github.com/dukerupert/splitbook/internal/server"
	"github.com/dukerupert/splitbook/internal/store"
	ws "github.com/dukerupert/splitbook/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
		Interval:   cfg.Backup.Interval,
		Retention:  cfg.Backup.Retention,
	}, db, logger)

	if len(os.Args) > 1 {
		if err := runCommand(backups, os.Args[1:]); err != nil {
			logger.Error(os.Args[1], "error", err)
			os.Exit(1)
		}
		return
	}

	st := store.New(db)
	m := metrics.New()
	hub := ws.NewHub(m, logger)
	svc := ledger.NewService(st, m, hub, logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	srv := server.New(st, svc, hub, tokens, m, server.Options{OriginPatterns: cfg.WSOrigins, Backups: backups}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go srv.RunBackground(ctx)

	// No WriteTimeout: /ws connections are long-lived.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("splitbook listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// runCommand handles the maintenance subcommands:
//
//	splitbook backup               take a snapshot now
//	splitbook backups              list stored snapshots
//	splitbook restore <key> <dst>  restore a snapshot into a new file
func runCommand(backups *backup.Manager, args []string) error {
	ctx := context.Background()
	switch args[0] {
	case "backup":
		key, err := backups.RunNow(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
	case "backups":
		keys, err := backups.List(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
	case "restore":
		if len(args) != 3 {
			return errors.New("usage: splitbook restore <key> <dst>")
		}
		return backups.Restore(ctx, args[1], args[2])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
