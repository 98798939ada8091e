package authcode

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const tokenRequestDescription = "Authorization Code - Access Token Request"

// Exchanger performs authorization code grant token exchanges. It holds no
// per-exchange state and is safe for concurrent use.
type Exchanger struct {
	config   Config
	grant    GrantType
	certs    CertLoader
	poster   Poster
	logger   *zap.Logger
	now      func() time.Time
	newState func() (string, error)
}

type Option func(*Exchanger)

func WithCertLoader(loader CertLoader) Option {
	return func(e *Exchanger) { e.certs = loader }
}

func WithPoster(poster Poster) Option {
	return func(e *Exchanger) { e.poster = poster }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exchanger) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) { e.now = now }
}

func WithStateGenerator(newState func() (string, error)) Option {
	return func(e *Exchanger) { e.newState = newState }
}

// New returns an Exchanger using cfg as its defaults. Certificates are loaded
// with a DirLoader rooted at the working directory and requests are sent with
// an HTTPPoster unless overridden.
func New(cfg Config, opts ...Option) *Exchanger {
	e := &Exchanger{
		config:   cfg,
		grant:    GrantAuthorizationCode,
		certs:    DirLoader{},
		poster:   &HTTPPoster{},
		logger:   zap.NewNop(),
		now:      time.Now,
		newState: NewState,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Config returns the defaults the Exchanger was constructed with.
func (e *Exchanger) Config() Config {
	return e.config
}

// NewState returns 32 random bytes, base64url encoded.
func NewState() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random state bytes: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// AuthorizationRequest is a built authorization URL and the state embedded
// in it.
type AuthorizationRequest struct {
	URL   string
	State string
}

// AuthorizationRequest builds the URL a user agent is redirected to in order
// to obtain an authorization code. It performs no network activity.
func (e *Exchanger) AuthorizationRequest(conn Connection) (AuthorizationRequest, error) {
	settings, err := e.config.resolveAuthorization(conn)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	state, err := e.newState()
	if err != nil {
		return AuthorizationRequest{}, err
	}

	oauthConfig := oauth2.Config{
		ClientID:     settings.id,
		ClientSecret: settings.secret,
		Endpoint:     oauth2.Endpoint{AuthURL: settings.url},
		RedirectURL:  settings.callback,
		Scopes:       []string{"openid"},
	}
	return AuthorizationRequest{
		URL:   oauthConfig.AuthCodeURL(state),
		State: state,
	}, nil
}

// AuthorizationURL is AuthorizationRequest without the state.
func (e *Exchanger) AuthorizationURL(conn Connection) (string, error) {
	req, err := e.AuthorizationRequest(conn)
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

/*
Exchange trades an authorization code for a token.

A *ConfigurationError is returned before any I/O when a required setting
cannot be resolved. A certificate failure ends the exchange with a nil token
and an error wrapping ErrCertificateLoad. A transport failure returns an
error wrapping ErrTokenRequest together with whatever token the transport
decoded, possibly nil. A response without an access token is returned with
a nil error; check Token.Valid.
*/
func (e *Exchanger) Exchange(ctx context.Context, opts Options) (*Token, error) {
	settings, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	return e.exchange(ctx, settings)
}

/*
ExchangeAsync is the callback form of Exchange. Configuration errors are
returned synchronously and done is never called. Otherwise the exchange runs
on its own goroutine and done is called exactly once with the same values
Exchange would have returned.
*/
func (e *Exchanger) ExchangeAsync(
	ctx context.Context,
	opts Options,
	done func(*Token, error),
) error {
	if done == nil {
		return errors.New("authcode: nil completion callback")
	}
	settings, err := e.prepare(opts)
	if err != nil {
		return err
	}
	go func() {
		done(e.exchange(ctx, settings))
	}()
	return nil
}

func (e *Exchanger) prepare(opts Options) (exchangeSettings, error) {
	settings, err := e.config.resolveExchange(opts)
	if err != nil {
		return exchangeSettings{}, err
	}
	if opts.KeepAlive {
		e.logger.Warn("session keep-alive not allowed for authorization code grant type")
	}
	return settings, nil
}

func (e *Exchanger) exchange(ctx context.Context, s exchangeSettings) (*Token, error) {
	log := e.logger.With(
		zap.String("exchange_id", uuid.NewString()),
		zap.String("token_url", s.tokenURL),
	)

	bundle, err := e.certs.LoadCerts(ctx, e.config.App, s.certs)
	if err != nil {
		if !errors.Is(err, ErrCertificateLoad) {
			err = fmt.Errorf("%w: %v", ErrCertificateLoad, err)
		}
		log.Error("failed to load certificates", zap.Error(err))
		return nil, err
	}
	for _, kind := range []ArtifactKind{KindPEM, KindKey} {
		if n := bundle.count(kind); n > 1 {
			log.Debug("multiple certificate artifacts of one kind; using first",
				zap.String("kind", string(kind)),
				zap.Int("count", n),
			)
		}
	}

	mat, err := readMaterial(bundle)
	if err != nil {
		log.Error("failed to read certificates", zap.Error(err))
		return nil, err
	}

	req := TokenRequest{
		Description: tokenRequestDescription,
		URL:         s.tokenURL,
		Form:        e.form(s),
		Trust: TrustConfig{
			CA:   mat.cert,
			Cert: mat.cert,
			Key:  mat.key,
			Mode: e.config.Trust,
		},
	}

	log.Debug("posting token request", zap.String("trust", req.Trust.Mode.String()))
	token, err := e.poster.PostForm(ctx, req)
	return e.parse(log, token, err)
}

func (e *Exchanger) form(s exchangeSettings) url.Values {
	form := url.Values{}
	form.Set("grant_type", string(e.grant))
	form.Set("code", s.code)
	form.Set("redirect_uri", s.callback)
	form.Set("client_id", s.id)
	form.Set("client_secret", s.secret)
	return form
}

func (e *Exchanger) parse(log *zap.Logger, token *Token, err error) (*Token, error) {
	if err != nil {
		if !errors.Is(err, ErrTokenRequest) {
			err = fmt.Errorf("%w: %v", ErrTokenRequest, err)
		}
		log.Error("get access token returned error", zap.Error(err))
	} else if token == nil {
		token = &Token{}
	}

	if !token.Valid() {
		log.Error("unable to retrieve access token")
		return token, err
	}

	token.setExpiration(e.now(), e.config.DefaultExpiration)
	return token, err
}
