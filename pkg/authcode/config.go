package authcode

import (
	"strings"
	"time"
)

// GrantType identifies the OAuth2 grant performed by this package. Only the
// authorization code grant is supported.
type GrantType string

const GrantAuthorizationCode GrantType = "authorization_code"

// Configuration keys named in ConfigurationError messages.
const (
	KeyAuthorizationURL  = "connect.authorizationurl"
	KeyTokenURL          = "connect.tokenurl"
	KeyCallbackURL       = "connect.callbackurl"
	KeyClientID          = "connect.client.id"
	KeyClientSecret      = "connect.client.secret"
	KeyDefaultExpiration = "connect.defaultexpiration"
)

// Config holds the defaults an Exchanger falls back to when a call does not
// supply its own value. Required fields are validated at the point of use, not
// when the Exchanger is constructed.
type Config struct {
	// App is passed to the CertLoader to namespace certificate lookups.
	App string

	AuthorizationURL string
	TokenURL         string
	CallbackURL      string
	ClientID         string
	ClientSecret     string

	// DefaultExpiration applies when a token response omits expires_in.
	DefaultExpiration time.Duration

	// Certs is the certificate specification handed to the CertLoader.
	Certs string

	Trust TrustMode
}

// Connection carries per-call overrides for building an authorization URL.
type Connection struct {
	AuthorizationURL string
	ClientID         string
	ClientSecret     string
	CallbackURL      string
}

// Options carries the authorization code and per-call overrides for a token
// exchange.
type Options struct {
	Code string

	TokenURL     string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Certs        string

	// KeepAlive is not supported by this grant type. Setting it only emits
	// a warning.
	KeepAlive bool
}

type client struct {
	id       string
	secret   string
	callback string
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (cfg Config) resolveClient(
	id string,
	secret string,
	callback string,
) (
	client,
	error,
) {
	c := client{
		id:       firstSet(id, cfg.ClientID),
		secret:   firstSet(secret, cfg.ClientSecret),
		callback: firstSet(callback, cfg.CallbackURL),
	}
	if c.id == "" {
		return client{}, missing("client id", KeyClientID)
	}
	if c.secret == "" {
		return client{}, missing("client secret", KeyClientSecret)
	}
	if c.callback == "" {
		return client{}, missing("callback url", KeyCallbackURL)
	}
	return c, nil
}

type authorizationSettings struct {
	client
	url string
}

func (cfg Config) resolveAuthorization(conn Connection) (authorizationSettings, error) {
	authURL := firstSet(conn.AuthorizationURL, cfg.AuthorizationURL)
	if authURL == "" {
		return authorizationSettings{}, missing("authorization url", KeyAuthorizationURL)
	}
	c, err := cfg.resolveClient(conn.ClientID, conn.ClientSecret, conn.CallbackURL)
	if err != nil {
		return authorizationSettings{}, err
	}
	return authorizationSettings{client: c, url: authURL}, nil
}

type exchangeSettings struct {
	client
	code     string
	tokenURL string
	certs    string
}

func (cfg Config) resolveExchange(opts Options) (exchangeSettings, error) {
	code := strings.TrimSpace(opts.Code)
	if code == "" {
		return exchangeSettings{}, missing("authorization code", "")
	}
	tokenURL := firstSet(opts.TokenURL, cfg.TokenURL)
	if tokenURL == "" {
		return exchangeSettings{}, missing("token url", KeyTokenURL)
	}
	c, err := cfg.resolveClient(opts.ClientID, opts.ClientSecret, opts.CallbackURL)
	if err != nil {
		return exchangeSettings{}, err
	}
	return exchangeSettings{
		client:   c,
		code:     code,
		tokenURL: tokenURL,
		certs:    firstSet(opts.Certs, cfg.Certs),
	}, nil
}
