package migration

import (
	"fmt"
	"os"
)

// sidecarExtensions are the companion files a file-based database (as
// opposed to a directory-based one) may carry alongside its main file,
// per spec §6's "Persisted layout".
var sidecarExtensions = []string{".lock", ".wal"}

// applyInPlace implements spec §4.2's three in-place modes:
//   - neither flag: newDB is left where it was exported, oldDB untouched.
//   - overwrite && !deleteOld: oldDB is renamed to "<oldDB>_old", then
//     newDB takes its place.
//   - overwrite && deleteOld: oldDB is deleted outright, newDB takes its
//     place. No backup.
func applyInPlace(oldDB, newDB string, overwrite, deleteOld bool) error {
	if !overwrite {
		return nil
	}

	if deleteOld {
		if err := removeDBWithSidecars(oldDB); err != nil {
			return fmt.Errorf("migration: deleting old database: %w", err)
		}
	} else {
		backup := oldDB + "_old"
		if err := removeDBWithSidecars(backup); err != nil {
			return fmt.Errorf("migration: clearing previous backup: %w", err)
		}
		if err := renameDBWithSidecars(oldDB, backup); err != nil {
			return fmt.Errorf("migration: backing up old database: %w", err)
		}
	}

	if err := renameDBWithSidecars(newDB, oldDB); err != nil {
		return fmt.Errorf("migration: moving new database into place: %w", err)
	}
	return nil
}

// renameDBWithSidecars moves src to dst. For directory-based databases
// this is a single rename; for file-based databases it also moves any
// .lock/.wal sidecars that exist alongside the main file.
func renameDBWithSidecars(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	for _, ext := range sidecarExtensions {
		if _, statErr := os.Stat(src + ext); statErr == nil {
			_ = os.Rename(src+ext, dst+ext)
		}
	}
	return nil
}

// removeDBWithSidecars deletes path. For file-based databases it also
// deletes any .lock/.wal sidecars. A missing path is not an error (the
// caller may be clearing a backup slot that was never used).
func removeDBWithSidecars(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	for _, ext := range sidecarExtensions {
		_ = os.Remove(path + ext)
	}
	return nil
}
