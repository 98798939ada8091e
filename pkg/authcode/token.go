package authcode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Token is the token endpoint's response. A Token is returned even when the
// response carried no access token; callers must check Valid (or Validate)
// independently of the error returned alongside it.
type Token struct {
	AccessToken  string    `json:"access_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    ExpiresIn `json:"expires_in,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`

	// Expiry is derived from ExpiresIn (or the configured default) at the
	// time the response was received. Zero when no access token was issued.
	Expiry time.Time `json:"-"`

	// Raw holds every field of the decoded response body.
	Raw map[string]any `json:"-"`
}

// ExpiresIn is a lifetime in seconds. Some token endpoints encode it as a
// string, so both forms are accepted.
type ExpiresIn int64

func (e *ExpiresIn) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %q: %w", string(b), err)
	}
	*e = ExpiresIn(n)
	return nil
}

func (e ExpiresIn) Duration() time.Duration {
	return time.Duration(e) * time.Second
}

// decodeToken parses a token endpoint response body. An empty body yields an
// empty, non-nil Token.
func decodeToken(body []byte) (*Token, error) {
	token := &Token{}
	if len(bytes.TrimSpace(body)) == 0 {
		return token, nil
	}
	if err := json.Unmarshal(body, token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	raw := make(map[string]any)
	if err := json.Unmarshal(body, &raw); err == nil {
		token.Raw = raw
	}
	return token, nil
}

// Valid reports whether the token carries an access token.
func (t *Token) Valid() bool {
	return t != nil && t.AccessToken != ""
}

// Validate returns ErrMissingAccessToken when the token has no access token.
func (t *Token) Validate() error {
	if !t.Valid() {
		return ErrMissingAccessToken
	}
	return nil
}

// ExpiresAtMillis returns the expiration instant in milliseconds since the
// Unix epoch, or zero when no expiration was computed.
func (t *Token) ExpiresAtMillis() int64 {
	if t == nil || t.Expiry.IsZero() {
		return 0
	}
	return t.Expiry.UnixMilli()
}

func (t *Token) setExpiration(now time.Time, fallback time.Duration) {
	lifetime := t.ExpiresIn.Duration()
	if lifetime <= 0 {
		lifetime = fallback
	}
	if lifetime <= 0 {
		return
	}
	t.Expiry = now.Add(lifetime)
}

// OAuth2 converts the token for use with golang.org/x/oauth2 HTTP clients.
func (t *Token) OAuth2() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if t.Raw != nil {
		return tok.WithExtra(t.Raw)
	}
	return tok
}
