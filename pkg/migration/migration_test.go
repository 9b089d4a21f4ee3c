package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgstore/kgstore/pkg/engine"
)

func TestValidateRejectsMissingSource(t *testing.T) {
	e := New(Options{
		NewVersion: engine.CurrentStorageVersionCode,
		OldDB:      filepath.Join(t.TempDir(), "does-not-exist"),
		NewDB:      filepath.Join(t.TempDir(), "new"),
		Logger:     zerolog.Nop(),
	})
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestValidateRejectsExistingTarget(t *testing.T) {
	oldDB := t.TempDir()
	newDB := t.TempDir() // already exists

	e := New(Options{
		NewVersion: engine.CurrentStorageVersionCode,
		OldDB:      oldDB,
		NewDB:      newDB,
		Logger:     zerolog.Nop(),
	})
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrTargetExists)
}

func TestValidateRejectsDeleteOldWithoutOverwrite(t *testing.T) {
	oldDB := t.TempDir()
	newDB := filepath.Join(t.TempDir(), "new")

	e := New(Options{
		NewVersion: engine.CurrentStorageVersionCode,
		OldDB:      oldDB,
		NewDB:      newDB,
		DeleteOld:  true,
		Logger:     zerolog.Nop(),
	})
	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete-old")
}

func TestValidateRejectsUnknownNewVersion(t *testing.T) {
	oldDB := t.TempDir()
	require.NoError(t, engine.WriteCatalog(oldDB, engine.CurrentStorageVersionCode))
	newDB := filepath.Join(t.TempDir(), "new")

	e := New(Options{
		NewVersion: 9999,
		OldDB:      oldDB,
		NewDB:      newDB,
		Logger:     zerolog.Nop(),
	})
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, engine.ErrUnknownStorageVersion)
}

func TestVerifyExportNonEmptyOnRealExport(t *testing.T) {
	eng, err := engine.OpenBadgerEngine(engine.BadgerOptions{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.UpsertNode(&engine.Node{ID: "a", Name: "A", Type: "Doc"}))

	dir := t.TempDir()
	require.NoError(t, engine.Export(eng, dir))
	assert.NoError(t, verifyExportNonEmpty(dir))
}

func TestVerifyExportNonEmptyMissingSchema(t *testing.T) {
	assert.Error(t, verifyExportNonEmpty(t.TempDir()))
}

func TestProvisionEnvironmentRecreatesCleanState(t *testing.T) {
	root := t.TempDir()
	dir, err := provisionEnvironment(root, 39)
	require.NoError(t, err)

	stray := filepath.Join(dir, "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("leftover"), 0o644))

	dir2, err := provisionEnvironment(root, 39)
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)

	_, statErr := os.Stat(stray)
	assert.True(t, os.IsNotExist(statErr), "stray file from previous provisioning must be gone")

	marker, err := os.ReadFile(filepath.Join(dir2, environmentMarkerFile))
	require.NoError(t, err)
	assert.Equal(t, "39", string(marker))
}
