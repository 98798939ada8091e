package api

import (
	"net/http"
)

func (a *API) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     accessTokenCookie,
			Path:     "/",
			MaxAge:   -1,
			SameSite: a.cookies.SameSite,
			Secure:   a.cookies.Secure,
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusOK)
	}
}
