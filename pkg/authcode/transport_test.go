package authcode_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
	"git.sr.ht/~jakintosh/authcode/pkg/authcodetest"
)

// mtlsExchanger returns an exchanger whose certificates are the shared test
// credentials, loaded from disk through a DirLoader.
func mtlsExchanger(t *testing.T, tokenURL string, trust authcode.TrustMode) *authcode.Exchanger {
	t.Helper()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	root := t.TempDir()
	dir := filepath.Join(root, "connect")
	require.NoError(t, mkdir(dir))
	_, err = creds.WriteBundle(dir)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.TokenURL = tokenURL
	cfg.Trust = trust
	return authcode.New(cfg,
		authcode.WithCertLoader(authcode.DirLoader{Root: root}),
		authcode.WithPoster(&authcode.HTTPPoster{Timeout: 5 * time.Second}),
	)
}

func TestHTTPPoster_MutualTLSExchange(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(creds, authcodetest.RespondJSON(http.StatusOK, map[string]any{
		"access_token": "abc",
		"token_type":   "Bearer",
		"expires_in":   100,
	}))
	defer server.Close()

	exchanger := mtlsExchanger(t, server.URL+"/token", authcode.TrustPinnedCA)
	before := time.Now()
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "the-code"})
	require.NoError(t, err)
	require.Equal(t, "abc", token.AccessToken)
	require.Equal(t, "Bearer", token.TokenType)
	require.WithinDuration(t, before.Add(100*time.Second), token.Expiry, 5*time.Second)
	require.EqualValues(t, 100, token.Raw["expires_in"])

	requests := server.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, http.MethodPost, requests[0].Method)
	require.Equal(t, "application/x-www-form-urlencoded", requests[0].ContentType)
	require.Equal(t, 1, requests[0].PeerCerts)
	require.Equal(t, []string{"authorization_code"}, requests[0].Form["grant_type"])
	require.Equal(t, []string{"the-code"}, requests[0].Form["code"])
	require.Equal(t, []string{"client-id"}, requests[0].Form["client_id"])
	require.Equal(t, []string{"client-secret"}, requests[0].Form["client_secret"])
	require.Equal(t, []string{"https://app.example.com/callback"}, requests[0].Form["redirect_uri"])
}

func TestHTTPPoster_StrictTrustVerifiesHostname(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(creds, authcodetest.RespondJSON(http.StatusOK, map[string]any{
		"access_token": "abc",
	}))
	defer server.Close()

	// test certificate names 127.0.0.1, which the server URL uses
	exchanger := mtlsExchanger(t, server.URL, authcode.TrustStrict)
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "code"})
	require.NoError(t, err)
	require.True(t, token.Valid())
}

func TestHTTPPoster_RejectsServerFromOtherCA(t *testing.T) {
	t.Parallel()
	other, err := authcodetest.NewCredentials("other ca")
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(other, authcodetest.RespondJSON(http.StatusOK, map[string]any{
		"access_token": "abc",
	}))
	defer server.Close()

	exchanger := mtlsExchanger(t, server.URL, authcode.TrustPinnedCA)
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "code"})
	require.Nil(t, token)
	require.ErrorIs(t, err, authcode.ErrTokenRequest)
	require.Empty(t, server.Requests())
}

func TestHTTPPoster_ErrorStatusReturnsPartialToken(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(creds, authcodetest.RespondJSON(http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "code expired",
	}))
	defer server.Close()

	exchanger := mtlsExchanger(t, server.URL, authcode.TrustPinnedCA)
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "code"})
	require.ErrorIs(t, err, authcode.ErrTokenRequest)

	var reqErr *authcode.TokenRequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	require.Contains(t, reqErr.Body, "invalid_grant")

	require.NotNil(t, token)
	require.False(t, token.Valid())
	require.Equal(t, "invalid_grant", token.Raw["error"])
}

func TestHTTPPoster_EmptyObjectResponse(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(creds, authcodetest.RespondJSON(http.StatusOK, map[string]any{}))
	defer server.Close()

	exchanger := mtlsExchanger(t, server.URL, authcode.TrustPinnedCA)
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "code"})
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Empty(t, token.AccessToken)
}

func TestHTTPPoster_MalformedBody(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	server := authcodetest.NewTokenServer(creds, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	defer server.Close()

	exchanger := mtlsExchanger(t, server.URL, authcode.TrustPinnedCA)
	token, err := exchanger.Exchange(context.Background(), authcode.Options{Code: "code"})
	require.Nil(t, token)
	require.ErrorIs(t, err, authcode.ErrTokenRequest)
}

func TestHTTPPoster_ConnectionRefused(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	// start and immediately stop a server to get an address nothing listens on
	server := authcodetest.NewTokenServer(creds, authcodetest.RespondJSON(http.StatusOK, nil))
	addr := server.URL
	server.Close()

	exchanger := mtlsExchanger(t, addr, authcode.TrustPinnedCA)
	calls := make(chan error, 2)
	err = exchanger.ExchangeAsync(context.Background(), authcode.Options{Code: "code"}, func(token *authcode.Token, err error) {
		calls <- err
	})
	require.NoError(t, err)

	select {
	case err := <-calls:
		require.ErrorIs(t, err, authcode.ErrTokenRequest)
	case <-time.After(10 * time.Second):
		t.Fatal("callback not invoked")
	}
	select {
	case <-calls:
		t.Fatal("callback invoked twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTrustConfig_InvalidMaterial(t *testing.T) {
	t.Parallel()
	creds, err := authcodetest.SharedCredentials()
	require.NoError(t, err)

	_, err = authcode.TrustConfig{CA: []byte("garbage"), Cert: creds.CertPEM, Key: creds.KeyPEM}.TLSConfig()
	require.Error(t, err)

	_, err = authcode.TrustConfig{CA: creds.CertPEM, Cert: creds.CertPEM, Key: []byte("garbage")}.TLSConfig()
	require.Error(t, err)

	config, err := authcode.TrustConfig{CA: creds.CertPEM, Cert: creds.CertPEM, Key: creds.KeyPEM, Mode: authcode.TrustStrict}.TLSConfig()
	require.NoError(t, err)
	require.False(t, config.InsecureSkipVerify)
	require.Len(t, config.Certificates, 1)
}

func TestParseTrustMode(t *testing.T) {
	t.Parallel()

	for _, mode := range []authcode.TrustMode{authcode.TrustPinnedCA, authcode.TrustStrict} {
		parsed, err := authcode.ParseTrustMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}

	parsed, err := authcode.ParseTrustMode("")
	require.NoError(t, err)
	require.Equal(t, authcode.TrustPinnedCA, parsed)

	_, err = authcode.ParseTrustMode("insecure")
	require.Error(t, err)
}
