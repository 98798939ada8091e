package api

import (
	"errors"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

func (a *API) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		location, err := a.service.BeginLogin(authcode.Connection{})
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, location, http.StatusFound)
	}
}

func (a *API) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		state := q.Get("state")
		if code == "" || state == "" {
			a.logApiErr(r, "callback missing code or state", errors.New("bad request"))
			http.Error(w, "missing code or state", http.StatusBadRequest)
			return
		}

		token, err := a.service.CompleteLogin(r.Context(), code, state)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		a.setTokenCookie(w, token)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (a *API) setTokenCookie(w http.ResponseWriter, token *authcode.Token) {
	// a zero expiry leaves a session cookie
	maxAge := 0
	if !token.Expiry.IsZero() {
		maxAge = int(time.Until(token.Expiry).Seconds())
		if maxAge <= 0 {
			maxAge = -1
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Path:     "/",
		Value:    token.AccessToken,
		MaxAge:   maxAge,
		SameSite: a.cookies.SameSite,
		Secure:   a.cookies.Secure,
		HttpOnly: true,
	})
}
