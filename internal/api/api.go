// Package api exposes the login flow over HTTP.
package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/internal/service"
	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

const accessTokenCookie = "accessToken"

// CookieOptions configures attributes of the cookies the API sets.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

type API struct {
	service *service.Service
	cookies CookieOptions
	logger  *zap.Logger
}

func New(
	svc *service.Service,
	cookies CookieOptions,
	logger *zap.Logger,
) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service: svc,
		cookies: cookies,
		logger:  logger,
	}
}

func (a *API) logApiErr(r *http.Request, msg string, err error) {
	a.logger.Warn(msg,
		zap.String("method", r.Method),
		zap.String("uri", r.RequestURI),
		zap.Error(err),
	)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrStateInvalid):
		return http.StatusBadRequest
	case authcode.IsConfigurationError(err),
		errors.Is(err, service.ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, authcode.ErrCertificateLoad),
		errors.Is(err, authcode.ErrTokenRequest),
		errors.Is(err, authcode.ErrMissingAccessToken):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	a.logApiErr(r, http.StatusText(status), err)
	http.Error(w, http.StatusText(status), status)
}
