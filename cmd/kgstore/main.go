// Command kgstore is the CLI entry point for the embedded graph storage
// adapter: a demo server loop exercising GraphAdapter end to end, the
// MigrationEngine CLI surface from spec §6, and a hidden migrate-step
// subcommand that is the real child-process target MigrationEngine spawns
// (see pkg/migration's package doc for why this is same-binary
// re-invocation rather than a second vendored engine).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/rs/zerolog"

	"github.com/kgstore/kgstore/pkg/config"
	"github.com/kgstore/kgstore/pkg/engine"
	"github.com/kgstore/kgstore/pkg/filestore"
	"github.com/kgstore/kgstore/pkg/graphadapter"
	"github.com/kgstore/kgstore/pkg/lock"
	"github.com/kgstore/kgstore/pkg/logging"
	"github.com/kgstore/kgstore/pkg/migration"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kgstore",
		Short: "kgstore - embedded graph storage adapter",
		Long: `kgstore is an embedded property-graph storage adapter written in Go,
providing a single-process graph store with optional cloud-backed
persistence and in-place storage-version migration.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kgstore v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the graph store and block until interrupted",
		RunE:  runServe,
	}
	serveCmd.Flags().String("path", "./data/graph", "Database path (local dir or s3://, gs://, az:// URI)")
	serveCmd.Flags().String("shadow-dir", "./data/shadow", "Local shadow directory for cloud-hosted databases")
	rootCmd.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate a database from one storage version to another",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().Uint64("old-version", 0, "Source storage version code (0 = auto-detect)")
	migrateCmd.Flags().Uint64("new-version", engine.CurrentStorageVersionCode, "Target storage version code")
	migrateCmd.Flags().String("old-db", "", "Path to the source database (required)")
	migrateCmd.Flags().String("new-db", "", "Path to write the migrated database (required)")
	migrateCmd.Flags().Bool("overwrite", false, "Move the migrated database into --old-db's place when done")
	migrateCmd.Flags().Bool("delete-old", false, "Delete --old-db instead of backing it up (requires --overwrite)")
	rootCmd.AddCommand(migrateCmd)

	migrateStepCmd := &cobra.Command{
		Use:    "migrate-step",
		Short:  "Internal: run one migration step in a fresh process",
		Hidden: true,
	}
	exportStepCmd := &cobra.Command{
		Use:  "export",
		RunE: runMigrateStepExport,
	}
	exportStepCmd.Flags().String("db", "", "Database to export")
	exportStepCmd.Flags().String("out", "", "Directory to write the export into")
	exportStepCmd.Flags().String("env", "", "Provisioned environment directory (informational)")
	migrateStepCmd.AddCommand(exportStepCmd)

	importStepCmd := &cobra.Command{
		Use:  "import",
		RunE: runMigrateStepImport,
	}
	importStepCmd.Flags().String("db", "", "Database to create and import into")
	importStepCmd.Flags().String("in", "", "Directory a prior export was written into")
	importStepCmd.Flags().String("env", "", "Provisioned environment directory (informational)")
	migrateStepCmd.AddCommand(importStepCmd)

	rootCmd.AddCommand(migrateStepCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	shadowDir, _ := cmd.Flags().GetString("shadow-dir")

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := filestore.BuildRegistry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building file storage registry: %w", err)
	}
	fileManager := filestore.NewManager(reg)
	lockRegistry := lock.NewRegistry()

	migrator := migration.New(migration.Options{Logger: log})

	adapter := graphadapter.New(graphadapter.Options{
		Path:              path,
		LocalShadowDir:    shadowDir,
		FileManager:       fileManager,
		LockRegistry:      lockRegistry,
		SharedLockEnabled: cfg.Locking.SharedLockEnabled,
		CloudConcurrency:  cfg.Locking.CloudConcurrency,
		Migrator:          migrator,
		Logger:            log,
	})

	log.Info().Str("path", path).Msg("opening graph store")
	if err := adapter.Open(ctx); err != nil {
		return fmt.Errorf("opening graph store: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Info().Msg("graph store ready, press Ctrl+C to stop")
	<-sigCh

	log.Info().Msg("shutting down")
	if err := adapter.Close(ctx); err != nil {
		return fmt.Errorf("closing graph store: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	oldVersion, _ := cmd.Flags().GetUint64("old-version")
	newVersion, _ := cmd.Flags().GetUint64("new-version")
	oldDB, _ := cmd.Flags().GetString("old-db")
	newDB, _ := cmd.Flags().GetString("new-db")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	deleteOld, _ := cmd.Flags().GetBool("delete-old")

	if oldDB == "" || newDB == "" {
		return fmt.Errorf("--old-db and --new-db are required")
	}

	cfg := config.LoadFromEnv()
	log := newLogger(cfg)

	eng := migration.New(migration.Options{
		OldVersion: oldVersion,
		NewVersion: newVersion,
		OldDB:      oldDB,
		NewDB:      newDB,
		Overwrite:  overwrite,
		DeleteOld:  deleteOld,
		Logger:     log,
	})

	if err := eng.Run(context.Background()); err != nil {
		return err
	}
	log.Info().Msg("migration complete")
	return nil
}

// runMigrateStepExport is the child-process target for MigrationEngine's
// EXPORT step: opens --db read-only-in-spirit (UpsertNode/Edge calls never
// happen here) and writes its contents to --out.
func runMigrateStepExport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	outDir, _ := cmd.Flags().GetString("out")
	if dbPath == "" || outDir == "" {
		return fmt.Errorf("--db and --out are required")
	}

	eng, err := engine.OpenBadgerEngine(engine.BadgerOptions{DataDir: dbPath})
	if err != nil {
		return fmt.Errorf("migrate-step export: opening %s: %w", dbPath, err)
	}
	defer eng.Close()

	return engine.Export(eng, outDir)
}

// runMigrateStepImport is the child-process target for MigrationEngine's
// IMPORT step: creates --db fresh, imports the export written to --in, then
// stamps the database with this build's current storage version.
func runMigrateStepImport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	inDir, _ := cmd.Flags().GetString("in")
	if dbPath == "" || inDir == "" {
		return fmt.Errorf("--db and --in are required")
	}

	eng, err := engine.OpenBadgerEngine(engine.BadgerOptions{DataDir: dbPath})
	if err != nil {
		return fmt.Errorf("migrate-step import: opening %s: %w", dbPath, err)
	}
	defer eng.Close()

	return engine.Import(eng, inDir)
}
