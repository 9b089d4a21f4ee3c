package filestore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderStoreAndRead(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(zerolog.Nop())
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b.txt")

	uri, err := p.Store(ctx, path, strings.NewReader("hello"), false)
	require.NoError(t, err)
	assert.NotEmpty(t, uri)

	exists, err := p.FileExists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = p.Store(ctx, path, strings.NewReader("again"), false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	rc, err := p.OpenRead(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
}

func TestRegistryConflict(t *testing.T) {
	reg := NewRegistry()
	p := NewLocalProvider(zerolog.Nop())
	require.NoError(t, reg.Register("file", p))
	assert.Error(t, reg.Register("file", p))
}

func TestSchemeOf(t *testing.T) {
	assert.Equal(t, "s3", SchemeOf("s3://bucket/key"))
	assert.Equal(t, "", SchemeOf("/local/path"))
	assert.True(t, IsCloudURI("gs://bucket/obj"))
	assert.False(t, IsCloudURI("/local/path"))
}

func TestManagerRemoveAllMissingIsNotError(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	require.NoError(t, reg.Register("", NewLocalProvider(zerolog.Nop())))
	mgr := NewManager(reg)

	err := mgr.RemoveAll(ctx, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
}
