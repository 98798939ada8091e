// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"git.sr.ht/~jakintosh/authcode/internal/api"
	"git.sr.ht/~jakintosh/authcode/internal/database"
	"git.sr.ht/~jakintosh/authcode/internal/service"
	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
	"git.sr.ht/~jakintosh/authcode/pkg/authcodetest"
)

const (
	TestAuthorizationURL = "https://idp.test.local/authorize"
	TestCallbackURL      = "https://app.test.local/callback"
	TestClientID         = "test-client"
	TestClientSecret     = "test-secret"
	TestAccessToken      = "test-access-token"
)

// DefaultTokenResponse is what the token server answers when no handler is
// given.
func DefaultTokenResponse() http.HandlerFunc {
	return authcodetest.RespondJSON(http.StatusOK, map[string]any{
		"access_token": TestAccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB          *database.SQLiteStore
	Service     *service.Service
	Router      http.Handler
	Config      authcode.Config
	TokenServer *authcodetest.TokenServer
	Logs        *observer.ObservedLogs
}

// SetupTestEnv creates an isolated test environment with in-memory SQLite and
// an mTLS token server answering with handler.
func SetupTestEnv(
	t *testing.T,
	handler http.HandlerFunc,
) *TestEnv {
	t.Helper()

	if handler == nil {
		handler = DefaultTokenResponse()
	}

	// create in-memory SQLite database
	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	// use cached credentials (generated once across all tests)
	creds, err := authcodetest.SharedCredentials()
	if err != nil {
		t.Fatalf("failed to create credentials: %v", err)
	}
	certsDir := t.TempDir()
	if _, err := creds.WriteBundle(certsDir); err != nil {
		t.Fatalf("failed to write certificate bundle: %v", err)
	}

	server := authcodetest.NewTokenServer(creds, handler)

	cfg := authcode.Config{
		App:               "test",
		AuthorizationURL:  TestAuthorizationURL,
		TokenURL:          server.URL,
		CallbackURL:       TestCallbackURL,
		ClientID:          TestClientID,
		ClientSecret:      TestClientSecret,
		DefaultExpiration: time.Hour,
		Certs:             certsDir,
		Trust:             authcode.TrustPinnedCA,
	}

	core, logs := observer.New(zap.DebugLevel)
	svc := service.New(
		db.StateStore(),
		cfg,
		service.DefaultStateTTL,
		zap.New(core),
	)

	// setup cleanup
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestEnv{
		DB:          db,
		Service:     svc,
		Config:      cfg,
		TokenServer: server,
		Logs:        logs,
	}
}

// SetupTestEnvWithRouter creates TestEnv and configures the API router
func SetupTestEnvWithRouter(
	t *testing.T,
	handler http.HandlerFunc,
) *TestEnv {
	t.Helper()
	env := SetupTestEnv(t, handler)
	a := api.New(env.Service, api.DefaultCookieOptions(), nil)
	env.Router = a.Router()
	return env
}

// BeginTestLogin starts a login and returns the state it recorded
func (env *TestEnv) BeginTestLogin(
	t *testing.T,
) string {
	t.Helper()
	location, err := env.Service.BeginLogin(authcode.Connection{})
	if err != nil {
		t.Fatalf("failed to begin login: %v", err)
	}
	return StateFrom(t, location)
}

// StateFrom extracts the state query parameter from an authorization URL
func StateFrom(
	t *testing.T,
	location string,
) string {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("failed to parse authorization URL: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("authorization URL missing state: %s", location)
	}
	return state
}
