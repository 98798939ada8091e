// Package authcode performs the OAuth2 authorization code grant token
// exchange over mutually authenticated TLS.
//
// An Exchanger is built once from a Config holding the defaults (endpoints,
// client credentials, callback URL, default token lifetime, certificate
// specification). Every call may override those defaults; a required value
// missing from both is reported as a *ConfigurationError.
//
// # Authorization URL
//
// The user agent is first sent to the authorization endpoint:
//
//	exchanger := authcode.New(authcode.Config{
//	    AuthorizationURL:  "https://connect.example.com/authorize",
//	    TokenURL:          "https://connect.example.com/token",
//	    CallbackURL:       "https://app.example.com/callback",
//	    ClientID:          "app",
//	    ClientSecret:      "secret",
//	    DefaultExpiration: time.Hour,
//	    Certs:             "connect",
//	}, authcode.WithCertLoader(authcode.DirLoader{Root: "/etc/authcode/certs"}))
//
//	url, err := exchanger.AuthorizationURL(authcode.Connection{})
//
// The URL requests `scope=openid` and carries a random `state`. Use
// AuthorizationRequest to get the state as well.
//
// # Token Exchange
//
// When the user agent comes back with a code, exchange it:
//
//	token, err := exchanger.Exchange(ctx, authcode.Options{Code: code})
//	switch {
//	case authcode.IsConfigurationError(err):
//	    // a required setting is missing; nothing was sent
//	case errors.Is(err, authcode.ErrCertificateLoad):
//	    // certificates couldn't be loaded; nothing was sent, token is nil
//	case errors.Is(err, authcode.ErrTokenRequest):
//	    // transport failure; token holds whatever was decoded, if anything
//	case !token.Valid():
//	    // the endpoint answered without an access token
//	}
//
// The error and the presence of an access token are independent signals.
// ExchangeAsync offers the same exchange with a completion callback.
//
// # Certificates
//
// The certificate specification is resolved by a CertLoader into a Bundle of
// `pem` and `key` artifacts. The first of each kind is used: the pem is both
// the client certificate and the only trusted root for the token endpoint.
// See TrustMode for how the server certificate is verified.
package authcode
