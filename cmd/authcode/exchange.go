package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/internal/config"
	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

func runURL(
	settings config.Settings,
	logger *zap.Logger,
	args []string,
) error {
	fs := flag.NewFlagSet("url", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (defaults to AUTHCODE_CONFIG)")
	var conn authcode.Connection
	fs.StringVar(&conn.AuthorizationURL, "authorization-url", "", "Override the authorization endpoint")
	fs.StringVar(&conn.ClientID, "client-id", "", "Override the client id")
	fs.StringVar(&conn.ClientSecret, "client-secret", "", "Override the client secret")
	fs.StringVar(&conn.CallbackURL, "callback-url", "", "Override the callback URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(settings, *configPath)
	if err != nil {
		return err
	}

	ex := authcode.New(cfg, exchangerOptions(settings, logger)...)
	req, err := ex.AuthorizationRequest(conn)
	if err != nil {
		return err
	}

	// state goes to stderr so stdout stays a bare URL
	fmt.Fprintf(os.Stderr, "state: %s\n", req.State)
	fmt.Println(req.URL)
	return nil
}

func runExchange(
	ctx context.Context,
	settings config.Settings,
	logger *zap.Logger,
	args []string,
) error {
	fs := flag.NewFlagSet("exchange", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (defaults to AUTHCODE_CONFIG)")
	var opts authcode.Options
	fs.StringVar(&opts.Code, "code", "", "Authorization code to exchange (required)")
	fs.StringVar(&opts.TokenURL, "token-url", "", "Override the token endpoint")
	fs.StringVar(&opts.ClientID, "client-id", "", "Override the client id")
	fs.StringVar(&opts.ClientSecret, "client-secret", "", "Override the client secret")
	fs.StringVar(&opts.CallbackURL, "callback-url", "", "Override the callback URL")
	fs.StringVar(&opts.Certs, "certs", "", "Override the certificate spec")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(settings, *configPath)
	if err != nil {
		return err
	}

	ex := authcode.New(cfg, exchangerOptions(settings, logger)...)
	token, err := ex.Exchange(ctx, opts)
	if err != nil {
		return err
	}
	if !token.Valid() {
		return errors.New("token endpoint returned no access token")
	}

	out := struct {
		*authcode.Token
		ExpiresAt int64 `json:"expires_at"`
	}{
		Token:     token,
		ExpiresAt: token.ExpiresAtMillis(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
