// Package cloudsync implements the CloudSync mixin (spec §4.3): pushing a
// locally materialized database file/directory to its cloud URI and pulling
// it back, for adapters whose canonical path is a cloud URI.
package cloudsync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kgstore/kgstore/pkg/filestore"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultConcurrency bounds parallel object copies when a Syncer is built
// with a non-positive concurrency budget.
const defaultConcurrency = 8

// Checkpointer flushes in-flight writes so the on-disk files are safe to
// copy. GraphAdapter satisfies this; it is a narrow interface here so
// cloudsync has no import-cycle dependency on the adapter package.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Syncer pulls/pushes a database tree between a local shadow directory and
// its canonical cloud URI.
type Syncer struct {
	manager     *filestore.Manager
	cloudURI    string
	localDir    string
	concurrency int64
	log         zerolog.Logger
}

// New builds a Syncer for a database whose canonical location is cloudURI,
// materialized locally at localDir. concurrency bounds how many objects are
// copied in flight at once (spec §6's "system-level concurrency budget for
// cloud operations"); a non-positive value falls back to defaultConcurrency.
func New(manager *filestore.Manager, cloudURI, localDir string, concurrency int, log zerolog.Logger) *Syncer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Syncer{manager: manager, cloudURI: cloudURI, localDir: localDir, concurrency: int64(concurrency), log: log}
}

// IsCloud reports whether this syncer's configured path is actually cloud-
// backed; adapters only invoke Pull/Push when this is true.
func (s *Syncer) IsCloud() bool {
	return filestore.IsCloudURI(s.cloudURI)
}

// Pull copies the database tree from the cloud URI into the local shadow
// directory. A missing remote is not an error: the database will be
// created locally and pushed on the first checkpoint, per spec §4.3/§7.
func (s *Syncer) Pull(ctx context.Context) error {
	entries, err := s.manager.List(ctx, s.cloudURI)
	if err != nil || len(entries) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("uri", s.cloudURI).Msg("pull_from_cloud: remote missing or unreadable, starting fresh local database")
		}
		return nil
	}

	return s.copyAll(ctx, entries, func(rel string) (src, dst string) {
		return joinURI(s.cloudURI, rel), filepath.Join(s.localDir, rel)
	}, "pulling")
}

// Push flushes the engine via Checkpoint (if the backend is cloud and a
// local shadow exists) and copies the tree back to the cloud URI.
func (s *Syncer) Push(ctx context.Context, checkpoint Checkpointer) error {
	if !s.IsCloud() {
		return nil
	}
	if exists, err := s.manager.FileExists(ctx, s.localDir); err != nil {
		return fmt.Errorf("cloudsync: checking local shadow: %w", err)
	} else if !exists {
		isDir, dirErr := s.manager.IsDir(ctx, s.localDir)
		if dirErr != nil || !isDir {
			return nil // nothing materialized locally yet
		}
	}

	if checkpoint != nil {
		if err := checkpoint.Checkpoint(ctx); err != nil {
			return fmt.Errorf("cloudsync: checkpoint before push: %w", err)
		}
	}

	entries, err := s.manager.List(ctx, s.localDir)
	if err != nil {
		return fmt.Errorf("cloudsync: listing local shadow: %w", err)
	}

	return s.copyAll(ctx, entries, func(rel string) (src, dst string) {
		return filepath.Join(s.localDir, rel), joinURI(s.cloudURI, rel)
	}, "pushing")
}

// copyAll fans out one copyOne call per entry, bounded to s.concurrency
// in-flight copies at a time. The first failing copy cancels the rest.
func (s *Syncer) copyAll(ctx context.Context, entries []string, pathsFor func(rel string) (src, dst string), verb string) error {
	sem := semaphore.NewWeighted(s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, rel := range entries {
		rel := rel
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			src, dst := pathsFor(rel)
			if err := copyOne(gctx, s.manager, src, dst); err != nil {
				return fmt.Errorf("cloudsync: %s %s: %w", verb, rel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func copyOne(ctx context.Context, m *filestore.Manager, src, dst string) error {
	r, err := m.OpenRead(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = m.Store(ctx, dst, r, true)
	return err
}

func joinURI(base, rel string) string {
	base = strings.TrimSuffix(base, "/")
	return base + "/" + rel
}
