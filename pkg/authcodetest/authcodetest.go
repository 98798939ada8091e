// Package authcodetest provides certificates and a mutual TLS token endpoint
// for testing code built on the authcode package.
package authcodetest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

// Credentials is a self-signed certificate usable as CA, server certificate
// and client certificate, the shape the authorization code flow expects.
type Credentials struct {
	CertPEM []byte
	KeyPEM  []byte
	Pair    tls.Certificate
	Pool    *x509.CertPool
}

// NewCredentials generates a fresh P-256 self-signed certificate valid for
// localhost and 127.0.0.1.
func NewCredentials(commonName string) (*Credentials, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(certPEM)

	return &Credentials{
		CertPEM: certPEM,
		KeyPEM:  keyPEM,
		Pair:    pair,
		Pool:    pool,
	}, nil
}

var (
	sharedCredentials     *Credentials
	sharedCredentialsErr  error
	sharedCredentialsOnce sync.Once
)

// SharedCredentials returns credentials generated once per test binary.
func SharedCredentials() (*Credentials, error) {
	sharedCredentialsOnce.Do(func() {
		sharedCredentials, sharedCredentialsErr = NewCredentials("authcode test")
	})
	return sharedCredentials, sharedCredentialsErr
}

// WriteBundle writes the certificate and key into dir as client.pem and
// client.key and returns the matching bundle.
func (c *Credentials) WriteBundle(dir string) (authcode.Bundle, error) {
	certPath := filepath.Join(dir, "client.pem")
	keyPath := filepath.Join(dir, "client.key")
	if err := os.WriteFile(certPath, c.CertPEM, 0o600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, c.KeyPEM, 0o600); err != nil {
		return nil, err
	}
	return authcode.Bundle{
		{Kind: authcode.KindPEM, Path: certPath},
		{Kind: authcode.KindKey, Path: keyPath},
	}, nil
}

// TokenServer is a token endpoint that requires a client certificate issued
// by its own credentials.
type TokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// RecordedRequest is what the TokenServer saw for one request.
type RecordedRequest struct {
	Method      string
	ContentType string
	Form        map[string][]string
	PeerCerts   int
}

// NewTokenServer starts a TLS server presenting creds and requiring a client
// certificate that verifies against creds. handler writes the response.
func NewTokenServer(creds *Credentials, handler http.HandlerFunc) *TokenServer {
	ts := &TokenServer{}
	ts.Server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		rec := RecordedRequest{
			Method:      r.Method,
			ContentType: r.Header.Get("Content-Type"),
			Form:        r.PostForm,
		}
		if r.TLS != nil {
			rec.PeerCerts = len(r.TLS.PeerCertificates)
		}
		ts.mu.Lock()
		ts.requests = append(ts.requests, rec)
		ts.mu.Unlock()

		handler(w, r)
	}))
	ts.TLS = &tls.Config{
		Certificates: []tls.Certificate{creds.Pair},
		ClientCAs:    creds.Pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
	ts.StartTLS()
	return ts
}

// Requests returns a copy of the requests received so far.
func (ts *TokenServer) Requests() []RecordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]RecordedRequest(nil), ts.requests...)
}

// RespondJSON returns a handler writing body as JSON with the given status.
func RespondJSON(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
