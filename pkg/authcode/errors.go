package authcode

import (
	"errors"
	"fmt"
)

var (
	ErrCertificateLoad    = errors.New("failed to load certificates")
	ErrTokenRequest       = errors.New("failed to fetch token")
	ErrMissingAccessToken = errors.New("token response missing access token")
)

// ConfigurationError reports a required setting that could not be resolved
// from either the per-call overrides or the injected defaults.
type ConfigurationError struct {
	Field string
	Key   string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("missing %s", e.Field)
	}
	return fmt.Sprintf("missing %s. Check `%s` configuration value", e.Field, e.Key)
}

func missing(field, key string) error {
	return &ConfigurationError{Field: field, Key: key}
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// TokenRequestError is returned by HTTPPoster when the token endpoint answers
// with a non-2xx status.
type TokenRequestError struct {
	StatusCode int
	Body       string
}

func (e *TokenRequestError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TokenRequestError) Unwrap() error {
	return ErrTokenRequest
}
