package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/internal/api"
	"git.sr.ht/~jakintosh/authcode/internal/config"
	"git.sr.ht/~jakintosh/authcode/internal/database"
	"git.sr.ht/~jakintosh/authcode/internal/service"
)

const (
	purgeInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func runServe(
	ctx context.Context,
	settings config.Settings,
	logger *zap.Logger,
	args []string,
) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", settings.Port, "Listen port")
	configPath := fs.String("config", "", "Config file (defaults to AUTHCODE_CONFIG)")
	dbPath := fs.String("db", settings.DBPath, "SQLite database path")
	watch := fs.Bool("watch", true, "Reload the config file when it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, path, err := loadConfig(settings, *configPath)
	if err != nil {
		return err
	}

	db, err := database.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.New(
		db.StateStore(),
		cfg,
		settings.StateTTL,
		logger,
		exchangerOptions(settings, logger)...,
	)

	if *watch && path != "" {
		w, err := config.Watch(path, logger, func() {
			cfg, err := config.Load(path, nil)
			if err != nil {
				logger.Error("failed to reload config", zap.String("path", path), zap.Error(err))
				return
			}
			svc.SetConfig(cfg)
			logger.Info("reloaded config", zap.String("path", path))
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer w.Close()
	}

	go purgeStates(ctx, svc, logger)

	cookies := api.DefaultCookieOptions()
	cookies.Secure = !settings.InsecureCookies

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", *port),
		Handler:           api.New(svc, cookies, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func purgeStates(
	ctx context.Context,
	svc *service.Service,
	logger *zap.Logger,
) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svc.PurgeExpiredStates()
			if err != nil {
				logger.Warn("failed to purge expired states", zap.Error(err))
				continue
			}
			if count > 0 {
				logger.Debug("purged expired states", zap.Int64("count", count))
			}
		}
	}
}
