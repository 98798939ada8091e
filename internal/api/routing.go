package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/login", a.Login()).Methods(http.MethodGet)
	r.HandleFunc("/callback", a.Callback()).Methods(http.MethodGet)
	r.HandleFunc("/logout", a.Logout()).Methods(http.MethodPost)
	return r
}
