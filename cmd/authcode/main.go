package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/internal/config"
	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

const usage = `usage: authcode <command> [flags]

commands:
  serve      run the login callback server
  url        print an authorization URL
  exchange   exchange an authorization code and print the token as JSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	settings, err := config.LoadSettings(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load settings: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, settings, logger, args)
	case "url":
		err = runURL(settings, logger, args)
	case "exchange":
		err = runExchange(ctx, settings, logger, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(settings config.Settings) (*zap.Logger, error) {
	if settings.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the exchanger defaults from path, or the configured
// AUTHCODE_CONFIG when path is empty.
func loadConfig(settings config.Settings, path string) (authcode.Config, string, error) {
	if path == "" {
		path = settings.ConfigPath
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return authcode.Config{}, path, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

func exchangerOptions(settings config.Settings, logger *zap.Logger) []authcode.Option {
	return []authcode.Option{
		authcode.WithLogger(logger),
		authcode.WithCertLoader(authcode.DirLoader{Root: settings.CertsRoot}),
		authcode.WithPoster(&authcode.HTTPPoster{Timeout: settings.RequestTimeout}),
	}
}
