// Package config loads the exchanger defaults and the server settings.
//
// Defaults come from a JSON file laid out under a "connect" key, then from
// AUTHCODE_CONNECT_* environment variables, which win over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

// DefaultExpiration applies when neither the file nor the environment sets
// connect.defaultexpiration.
const DefaultExpiration = time.Hour

type fileConfig struct {
	Connect connectFile `json:"connect"`
}

type connectFile struct {
	App               string     `json:"app"`
	AuthorizationURL  string     `json:"authorizationurl"`
	TokenURL          string     `json:"tokenurl"`
	CallbackURL       string     `json:"callbackurl"`
	DefaultExpiration int64      `json:"defaultexpiration"`
	Certs             string     `json:"certs"`
	Trust             string     `json:"trust"`
	Client            clientFile `json:"client"`
}

type clientFile struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type connectEnv struct {
	App               string `env:"AUTHCODE_CONNECT_APP"`
	AuthorizationURL  string `env:"AUTHCODE_CONNECT_AUTHORIZATION_URL"`
	TokenURL          string `env:"AUTHCODE_CONNECT_TOKEN_URL"`
	CallbackURL       string `env:"AUTHCODE_CONNECT_CALLBACK_URL"`
	ClientID          string `env:"AUTHCODE_CONNECT_CLIENT_ID"`
	ClientSecret      string `env:"AUTHCODE_CONNECT_CLIENT_SECRET"`
	DefaultExpiration int64  `env:"AUTHCODE_CONNECT_DEFAULT_EXPIRATION"`
	Certs             string `env:"AUTHCODE_CONNECT_CERTS"`
	Trust             string `env:"AUTHCODE_CONNECT_TRUST"`
}

// Load reads the defaults from the file at path (skipped when path is empty)
// and applies environment overrides. A nil environ reads the process
// environment. Required settings are not checked here; the exchanger reports
// them when they are needed.
func Load(
	path string,
	environ map[string]string,
) (
	authcode.Config,
	error,
) {
	var file fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return authcode.Config{}, fmt.Errorf("couldn't read config file: %w", err)
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return authcode.Config{}, fmt.Errorf("couldn't parse config file '%s': %w", path, err)
		}
	}

	var raw connectEnv
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return authcode.Config{}, fmt.Errorf("parse env: %w", err)
	}

	c := file.Connect
	seconds := pick64(raw.DefaultExpiration, c.DefaultExpiration)
	expiration := DefaultExpiration
	if seconds > 0 {
		expiration = time.Duration(seconds) * time.Second
	}

	trust, err := authcode.ParseTrustMode(pick(raw.Trust, c.Trust))
	if err != nil {
		return authcode.Config{}, err
	}

	return authcode.Config{
		App:               pick(raw.App, c.App),
		AuthorizationURL:  pick(raw.AuthorizationURL, c.AuthorizationURL),
		TokenURL:          pick(raw.TokenURL, c.TokenURL),
		CallbackURL:       pick(raw.CallbackURL, c.CallbackURL),
		ClientID:          pick(raw.ClientID, c.Client.ID),
		ClientSecret:      pick(raw.ClientSecret, c.Client.Secret),
		DefaultExpiration: expiration,
		Certs:             pick(raw.Certs, c.Certs),
		Trust:             trust,
	}, nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func pick64(override, fallback int64) int64 {
	if override != 0 {
		return override
	}
	return fallback
}

// Settings configures the authcode server process.
type Settings struct {
	Port            string        `env:"AUTHCODE_PORT"             envDefault:"8080"`
	DBPath          string        `env:"AUTHCODE_DB_PATH"          envDefault:"authcode.db"`
	ConfigPath      string        `env:"AUTHCODE_CONFIG"`
	CertsRoot       string        `env:"AUTHCODE_CERTS_ROOT"       envDefault:"."`
	Environment     string        `env:"AUTHCODE_ENV"              envDefault:"development"`
	StateTTL        time.Duration `env:"AUTHCODE_STATE_TTL"        envDefault:"10m"`
	RequestTimeout  time.Duration `env:"AUTHCODE_REQUEST_TIMEOUT"  envDefault:"30s"`
	InsecureCookies bool          `env:"AUTHCODE_INSECURE_COOKIES"`
}

// LoadSettings parses Settings from environ, or the process environment when
// environ is nil.
func LoadSettings(environ map[string]string) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// Development reports whether the process runs in the development
// environment.
func (s Settings) Development() bool {
	return s.Environment == "development"
}
