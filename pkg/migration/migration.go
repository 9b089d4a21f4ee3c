// Package migration implements MigrationEngine (spec §4.2): detecting a
// database's on-disk storage version, provisioning isolated runtime
// environments for the old and new engine versions, driving an
// EXPORT/IMPORT pair between them through short-lived subprocesses, and
// optionally renaming/backing-up/deleting the original in place.
//
// "Isolated runtime environments loading a different engine version" is
// implemented as same-binary child-process re-invocation (`cmd/kgstore
// migrate-step`): the closest honest analog available without vendoring a
// second, incompatible copy of the embedded engine library into one
// process. Every exit path (success or failure) is handled explicitly,
// matching the teacher's error-propagation style in pkg/storage.
package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kgstore/kgstore/pkg/engine"
	"github.com/rs/zerolog"
)

// ErrTargetExists is returned when --new-db already exists: a fatal
// precondition per spec §6/§7.
var ErrTargetExists = errors.New("migration: target database already exists")

// ErrSourceMissing is returned when --old-db does not exist.
var ErrSourceMissing = errors.New("migration: source database does not exist")

// Options configures one migration run.
type Options struct {
	// OldVersion is the source storage version code. Zero means
	// auto-detect from OldDB's catalog.
	OldVersion uint64
	// NewVersion is the target storage version code. Required.
	NewVersion uint64
	OldDB      string
	NewDB      string
	Overwrite  bool
	DeleteOld  bool
	// ScratchRoot is the parent directory for per-run isolated runtime
	// environments (spec §4.2's "well-known sibling directory").
	ScratchRoot string
	// SubprocessBinary is the executable migrate-step subprocesses are
	// spawned from. Defaults to os.Executable() when empty.
	SubprocessBinary string
	Logger           zerolog.Logger
}

// Engine runs migrations per Options.
type Engine struct {
	opts Options
	log  zerolog.Logger
}

// New builds a migration Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts, log: opts.Logger}
}

// MigrateInPlace implements graphadapter.Migrator: it runs an in-place
// (overwrite, no backup-deletion) migration of dbPath from its detected
// version to the running engine's current version, the automatic-
// migration-on-open path from spec §4.2's "(a) automatically, when
// GraphAdapter fails to open a database...".
func (e *Engine) MigrateInPlace(ctx context.Context, dbPath string, detected engine.StorageVersion) error {
	newDB := dbPath + ".migrating"
	defer os.RemoveAll(newDB)

	runOpts := e.opts
	runOpts.OldDB = dbPath
	runOpts.NewDB = newDB
	runOpts.OldVersion = detected.Code
	runOpts.NewVersion = engine.CurrentStorageVersionCode
	runOpts.Overwrite = true
	runOpts.DeleteOld = false

	runner := &Engine{opts: runOpts, log: e.log}
	return runner.Run(ctx)
}

// Run executes one migration per the Options it was built with: version
// detection, environment provisioning, EXPORT from old, IMPORT into new,
// then the configured in-place mode. Scratch environments are removed on
// success and preserved on failure for inspection (spec §4.2).
func (e *Engine) Run(ctx context.Context) error {
	if err := e.validate(); err != nil {
		return err
	}

	oldVersion := e.opts.OldVersion
	if oldVersion == 0 {
		detected, err := engine.DetectStorageVersion(e.opts.OldDB)
		if err != nil {
			return fmt.Errorf("migration: detecting old version: %w", err)
		}
		oldVersion = detected.Code
		e.log.Info().Uint64("version", oldVersion).Msg("auto-detected old storage version")
	} else if _, ok := engine.ReleaseForCode(oldVersion); !ok {
		return fmt.Errorf("%w: code %d", engine.ErrUnknownStorageVersion, oldVersion)
	}

	if _, ok := engine.ReleaseForCode(e.opts.NewVersion); !ok {
		return fmt.Errorf("%w: code %d", engine.ErrUnknownStorageVersion, e.opts.NewVersion)
	}

	if oldVersion == e.opts.NewVersion {
		e.log.Info().Msg("old and new versions match, migration is a data no-op")
	}

	scratchRoot := e.opts.ScratchRoot
	if scratchRoot == "" {
		var err error
		scratchRoot, err = os.MkdirTemp("", "kgstore-migration-*")
		if err != nil {
			return fmt.Errorf("migration: creating scratch root: %w", err)
		}
	}

	oldEnv, err := provisionEnvironment(scratchRoot, oldVersion)
	if err != nil {
		return fmt.Errorf("migration: provisioning old environment: %w", err)
	}
	newEnv, err := provisionEnvironment(scratchRoot, e.opts.NewVersion)
	if err != nil {
		return fmt.Errorf("migration: provisioning new environment: %w", err)
	}

	exportDir := filepath.Join(scratchRoot, "export")
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return fmt.Errorf("migration: creating export dir: %w", err)
	}

	binary, err := e.subprocessBinary()
	if err != nil {
		return err
	}

	if err := runStep(ctx, binary, "migrate-step", "export",
		"--db", e.opts.OldDB, "--out", exportDir, "--env", oldEnv); err != nil {
		return fmt.Errorf("migration: export step failed, scratch preserved at %s: %w", scratchRoot, err)
	}
	if err := verifyExportNonEmpty(exportDir); err != nil {
		return fmt.Errorf("migration: export produced an empty schema, scratch preserved at %s: %w", scratchRoot, err)
	}

	if err := runStep(ctx, binary, "migrate-step", "import",
		"--db", e.opts.NewDB, "--in", exportDir, "--env", newEnv); err != nil {
		return fmt.Errorf("migration: import step failed, scratch preserved at %s: %w", scratchRoot, err)
	}

	if err := applyInPlace(e.opts.OldDB, e.opts.NewDB, e.opts.Overwrite, e.opts.DeleteOld); err != nil {
		return fmt.Errorf("migration: applying in-place mode, scratch preserved at %s: %w", scratchRoot, err)
	}

	if err := os.RemoveAll(scratchRoot); err != nil {
		e.log.Warn().Err(err).Str("scratch_root", scratchRoot).Msg("migration succeeded but scratch cleanup failed")
	}
	return nil
}

func (e *Engine) validate() error {
	if e.opts.NewVersion == 0 {
		return fmt.Errorf("migration: --new-version is required")
	}
	if e.opts.OldDB == "" || e.opts.NewDB == "" {
		return fmt.Errorf("migration: --old-db and --new-db are required")
	}
	if _, err := os.Stat(e.opts.OldDB); err != nil {
		if os.IsNotExist(err) {
			return ErrSourceMissing
		}
		return err
	}
	if _, err := os.Stat(e.opts.NewDB); err == nil {
		return ErrTargetExists
	}
	if e.opts.DeleteOld && !e.opts.Overwrite {
		return fmt.Errorf("migration: --delete-old is only meaningful with --overwrite")
	}
	return nil
}

func (e *Engine) subprocessBinary() (string, error) {
	if e.opts.SubprocessBinary != "" {
		return e.opts.SubprocessBinary, nil
	}
	bin, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("migration: resolving own executable: %w", err)
	}
	return bin, nil
}
