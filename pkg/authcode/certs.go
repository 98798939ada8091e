package authcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type ArtifactKind string

const (
	KindPEM ArtifactKind = "pem"
	KindKey ArtifactKind = "key"
)

// Artifact is one certificate file on disk.
type Artifact struct {
	Kind ArtifactKind `json:"type"`
	Path string       `json:"path"`
}

// Bundle is an unordered collection of certificate artifacts.
type Bundle []Artifact

// First returns the first artifact of the given kind. Later artifacts of the
// same kind are ignored.
func (b Bundle) First(kind ArtifactKind) (Artifact, bool) {
	for _, a := range b {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

func (b Bundle) count(kind ArtifactKind) int {
	n := 0
	for _, a := range b {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// CertLoader resolves a certificate specification into a Bundle.
type CertLoader interface {
	LoadCerts(ctx context.Context, app string, spec string) (Bundle, error)
}

// CertLoaderFunc adapts a function to the CertLoader interface.
type CertLoaderFunc func(ctx context.Context, app string, spec string) (Bundle, error)

func (f CertLoaderFunc) LoadCerts(ctx context.Context, app string, spec string) (Bundle, error) {
	return f(ctx, app, spec)
}

// StaticBundle returns a CertLoader that always yields the given bundle.
func StaticBundle(bundle Bundle) CertLoader {
	return CertLoaderFunc(func(context.Context, string, string) (Bundle, error) {
		return bundle, nil
	})
}

// DirLoader loads certificate artifacts from a directory. The spec names the
// directory: absolute paths are used as-is, relative ones are looked up first
// under Root/<app>/<spec>, then Root/<spec>. An empty spec means Root itself.
type DirLoader struct {
	Root string
}

var errNoArtifacts = errors.New("no certificate artifacts found")

func (l DirLoader) LoadCerts(
	ctx context.Context,
	app string,
	spec string,
) (
	Bundle,
	error,
) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := l.resolve(app, spec)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("couldn't read certificate dir: %v", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var bundle Bundle
	for _, name := range names {
		kind, ok := classify(name)
		if !ok {
			continue
		}
		bundle = append(bundle, Artifact{Kind: kind, Path: filepath.Join(dir, name)})
	}
	if len(bundle) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoArtifacts, dir)
	}
	return bundle, nil
}

func (l DirLoader) resolve(app string, spec string) (string, error) {
	if filepath.IsAbs(spec) {
		return spec, nil
	}

	var candidates []string
	if app != "" && spec != "" {
		candidates = append(candidates, filepath.Join(l.Root, app, spec))
	}
	candidates = append(candidates, filepath.Join(l.Root, spec))

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("certificate dir not found for %q", spec)
}

func classify(name string) (ArtifactKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pem", ".crt", ".cer":
		return KindPEM, true
	case ".key":
		return KindKey, true
	default:
		return "", false
	}
}

// material is the certificate content read for one exchange.
type material struct {
	cert []byte
	key  []byte
}

// readMaterial reads the first pem and first key artifact of the bundle.
// Files are read on every call.
func readMaterial(bundle Bundle) (material, error) {
	pem, ok := bundle.First(KindPEM)
	if !ok {
		return material{}, fmt.Errorf("%w: bundle has no %s artifact", ErrCertificateLoad, KindPEM)
	}
	key, ok := bundle.First(KindKey)
	if !ok {
		return material{}, fmt.Errorf("%w: bundle has no %s artifact", ErrCertificateLoad, KindKey)
	}

	cert, err := os.ReadFile(pem.Path)
	if err != nil {
		return material{}, fmt.Errorf("%w: %v", ErrCertificateLoad, err)
	}
	keyBytes, err := os.ReadFile(key.Path)
	if err != nil {
		return material{}, fmt.Errorf("%w: %v", ErrCertificateLoad, err)
	}
	return material{cert: cert, key: keyBytes}, nil
}
