// Package filestore provides a uniform filesystem abstraction over a local
// filesystem and several object stores (S3, GCS, Azure Blob), per spec
// §4.4. A scheme-keyed registry maps URL schemes (s3://, gs://, az://, or no
// scheme at all for local paths) to concrete providers.
package filestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

// Provider is the capability set every backend (local or cloud) implements.
// All methods take a context since network-backed providers may suspend.
type Provider interface {
	// FileExists reports whether path names an existing object.
	FileExists(ctx context.Context, path string) (bool, error)
	// IsDir reports whether path names a directory (local) or a prefix with
	// at least one object beneath it (cloud).
	IsDir(ctx context.Context, path string) (bool, error)
	// GetSize returns the byte size of the object at path.
	GetSize(ctx context.Context, path string) (int64, error)
	// Store writes data to path, creating intermediate directories/prefixes
	// as needed, and returns the canonical URI of the stored object.
	// Fails with ErrAlreadyExists if the object exists and overwrite is
	// false.
	Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error)
	// OpenRead returns a handle for reading path. Callers must Close it.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	// OpenWrite returns a handle for writing path. Callers must Close it to
	// flush and release any underlying resources.
	OpenWrite(ctx context.Context, path string) (io.WriteCloser, error)
	// EnsureDirectoryExists creates path (and parents) if absent. Providers
	// with no real directory concept write a zero-byte "<path>/" marker
	// object instead.
	EnsureDirectoryExists(ctx context.Context, path string) error
	// CopyFile copies src to dst within the same provider.
	CopyFile(ctx context.Context, src, dst string) error
	// Remove deletes a single object. Errors if it doesn't exist.
	Remove(ctx context.Context, path string) error
	// RemoveAll recursively removes everything under path, silently
	// ignoring "not found".
	RemoveAll(ctx context.Context, path string) error
	// List returns every object under path (recursively), relative to
	// path's own root, for use by recursive copy/remove.
	List(ctx context.Context, path string) ([]string, error)
}

// ErrAlreadyExists is returned by Store when overwrite is false and the
// target already exists.
var ErrAlreadyExists = fmt.Errorf("filestore: object already exists")

// CloudSchemes are the URI schemes the registry recognizes as cloud-backed,
// exposed so CloudSync can decide whether a configured path needs
// materializing locally.
var CloudSchemes = map[string]bool{
	"s3": true,
	"gs": true,
	"az": true,
}

// Registry maps URI schemes to Provider instances. Registering a scheme
// that is already taken is an error, per spec §4.4.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register associates scheme (e.g. "s3", "gs", "az", "" for local) with a
// provider instance. Re-registering an in-use scheme is a configuration-
// time error.
func (r *Registry) Register(scheme string, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[scheme]; exists {
		return fmt.Errorf("filestore: provider already registered for scheme %q", scheme)
	}
	r.providers[scheme] = p
	return nil
}

// ProviderFor resolves the provider responsible for a URI, based on its
// scheme, or the local provider if the URI carries no scheme.
func (r *Registry) ProviderFor(uri string) (Provider, error) {
	scheme := SchemeOf(uri)

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[scheme]
	if !ok {
		return nil, fmt.Errorf("filestore: no provider registered for scheme %q", scheme)
	}
	return p, nil
}

// SchemeOf extracts the scheme from a path, returning "" for a bare local
// path with no scheme prefix.
func SchemeOf(path string) string {
	if !strings.Contains(path, "://") {
		return ""
	}
	u, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// IsCloudURI reports whether path names a cloud-backed location.
func IsCloudURI(path string) bool {
	return CloudSchemes[SchemeOf(path)]
}

// Manager adapts a Registry into the higher-level operations GraphAdapter
// and CloudSync call, resolving the right provider per call so callers
// never branch on scheme themselves.
type Manager struct {
	registry *Registry
}

// NewManager wraps a registry.
func NewManager(registry *Registry) *Manager {
	return &Manager{registry: registry}
}

func (m *Manager) FileExists(ctx context.Context, path string) (bool, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return false, err
	}
	return p.FileExists(ctx, path)
}

func (m *Manager) IsDir(ctx context.Context, path string) (bool, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return false, err
	}
	return p.IsDir(ctx, path)
}

func (m *Manager) IsFile(ctx context.Context, path string) (bool, error) {
	exists, err := m.FileExists(ctx, path)
	if err != nil || !exists {
		return false, err
	}
	isDir, err := m.IsDir(ctx, path)
	if err != nil {
		return false, err
	}
	return !isDir, nil
}

func (m *Manager) GetSize(ctx context.Context, path string) (int64, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return 0, err
	}
	return p.GetSize(ctx, path)
}

func (m *Manager) Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return "", err
	}
	return p.Store(ctx, path, data, overwrite)
}

func (m *Manager) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return nil, err
	}
	return p.OpenRead(ctx, path)
}

func (m *Manager) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return nil, err
	}
	return p.OpenWrite(ctx, path)
}

func (m *Manager) EnsureDirectoryExists(ctx context.Context, path string) error {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return err
	}
	return p.EnsureDirectoryExists(ctx, path)
}

func (m *Manager) CopyFile(ctx context.Context, src, dst string) error {
	p, err := m.registry.ProviderFor(src)
	if err != nil {
		return err
	}
	return p.CopyFile(ctx, src, dst)
}

func (m *Manager) Remove(ctx context.Context, path string) error {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return err
	}
	return p.Remove(ctx, path)
}

func (m *Manager) RemoveAll(ctx context.Context, path string) error {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return err
	}
	return p.RemoveAll(ctx, path)
}

func (m *Manager) List(ctx context.Context, path string) ([]string, error) {
	p, err := m.registry.ProviderFor(path)
	if err != nil {
		return nil, err
	}
	return p.List(ctx, path)
}
