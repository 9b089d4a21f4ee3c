package cloudsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kgstore/kgstore/pkg/filestore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloudProvider wraps a LocalProvider but is registered under a scheme
// filestore.IsCloudURI recognizes, so cloudsync's IsCloud()/List() logic is
// exercised the same way it would be against a real object store. The
// methods cloudsync calls on cloud paths strip the "s3://" prefix before
// delegating, so an s3:// URI resolves to the local path it was built from.
type fakeCloudProvider struct {
	*filestore.LocalProvider
}

func (f *fakeCloudProvider) Store(ctx context.Context, path string, data io.Reader, overwrite bool) (string, error) {
	return f.LocalProvider.Store(ctx, strings.TrimPrefix(path, "s3://"), data, overwrite)
}

func (f *fakeCloudProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	return f.LocalProvider.OpenRead(ctx, strings.TrimPrefix(path, "s3://"))
}

func (f *fakeCloudProvider) List(ctx context.Context, path string) ([]string, error) {
	return f.LocalProvider.List(ctx, strings.TrimPrefix(path, "s3://"))
}

func newRegistryWithFakeCloud(t *testing.T) *filestore.Manager {
	t.Helper()
	reg := filestore.NewRegistry()
	require.NoError(t, reg.Register("", filestore.NewLocalProvider(zerolog.Nop())))
	require.NoError(t, reg.Register("s3", &fakeCloudProvider{filestore.NewLocalProvider(zerolog.Nop())}))
	return filestore.NewManager(reg)
}

// toCloudURI rewrites a local directory path into an s3:// URI pointing at
// the same directory, so the fake cloud provider (a LocalProvider
// underneath) resolves it to the same files on disk.
func toCloudURI(localPath string) string {
	return "s3://" + filepath.ToSlash(localPath)
}

type noopCheckpoint struct{ called bool }

func (n *noopCheckpoint) Checkpoint(_ context.Context) error {
	n.called = true
	return nil
}

func TestPushThenPullRoundTrip(t *testing.T) {
	ctx := context.Background()
	localDir := t.TempDir()
	cloudBackingDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(localDir, "catalog.kdb"), []byte("data"), 0o644))

	mgr := newRegistryWithFakeCloud(t)
	cloudURI := toCloudURI(cloudBackingDir)

	syncer := New(mgr, cloudURI, localDir, 0, zerolog.Nop())
	cp := &noopCheckpoint{}
	require.NoError(t, syncer.Push(ctx, cp))
	assert.True(t, cp.called)

	require.FileExists(t, filepath.Join(cloudBackingDir, "catalog.kdb"))

	// Pull into a fresh local directory and confirm byte equality.
	newLocal := t.TempDir()
	syncer2 := New(mgr, cloudURI, newLocal, 0, zerolog.Nop())
	require.NoError(t, syncer2.Pull(ctx))

	got, err := os.ReadFile(filepath.Join(newLocal, "catalog.kdb"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestPushCopiesManyFilesUnderBoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	localDir := t.TempDir()
	cloudBackingDir := t.TempDir()

	const fileCount = 20
	for i := 0; i < fileCount; i++ {
		name := filepath.Join(localDir, fmt.Sprintf("shard-%02d.dat", i))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("shard-%d", i)), 0o644))
	}

	mgr := newRegistryWithFakeCloud(t)
	syncer := New(mgr, toCloudURI(cloudBackingDir), localDir, 3, zerolog.Nop())
	require.NoError(t, syncer.Push(ctx, nil))

	for i := 0; i < fileCount; i++ {
		name := filepath.Join(cloudBackingDir, fmt.Sprintf("shard-%02d.dat", i))
		require.FileExists(t, name)
	}
}

func TestPullMissingRemoteIsNotError(t *testing.T) {
	ctx := context.Background()
	mgr := newRegistryWithFakeCloud(t)
	syncer := New(mgr, "s3://does-not-exist-bucket-path", t.TempDir(), 0, zerolog.Nop())
	assert.NoError(t, syncer.Pull(ctx))
}
