package engine

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// catalogFileName is the well-known relative path of the catalog file inside
// a directory-based database.
const catalogFileName = "catalog.kdb"

// catalogMagic is the 3-byte magic prefix at the start of every catalog
// file, followed by one padding byte and an 8-byte little-endian storage
// version code (bytes [4..12)).
var catalogMagic = [3]byte{'K', 'U', 'Z'}

// StorageVersion is the engine release implied by a catalog's version code.
type StorageVersion struct {
	Code    uint64
	Release string
}

// knownStorageVersions is the stable, append-only version code table from
// spec §6. Removal of an entry is not permitted; new engine releases only
// ever add rows.
var knownStorageVersions = map[uint64]string{
	37: "0.9.0",
	38: "0.10.0",
	39: "0.11.0",
}

// CurrentStorageVersionCode is the version code this build of the engine
// writes into new catalogs.
const CurrentStorageVersionCode uint64 = 39

// catalogPath resolves the catalog file location for a database path: the
// file itself if path is a single file, or catalogFileName inside it if
// path is a directory.
func catalogPath(dbPath string) (string, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Not yet created: directories are the default layout.
			return filepath.Join(dbPath, catalogFileName), nil
		}
		return "", err
	}
	if info.IsDir() {
		return filepath.Join(dbPath, catalogFileName), nil
	}
	return dbPath, nil
}

// WriteCatalog writes a fresh catalog file with the given version code,
// creating parent directories as needed. Used when a database is created
// for the first time.
func WriteCatalog(dbPath string, code uint64) error {
	path, err := catalogPath(dbPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("engine: creating catalog directory: %w", err)
	}

	buf := make([]byte, 12)
	copy(buf[0:3], catalogMagic[:])
	buf[3] = 0 // padding
	binary.LittleEndian.PutUint64(buf[4:12], code)

	return os.WriteFile(path, buf, 0o644)
}

// DetectStorageVersion reads the storage version code from a database's
// catalog file and maps it to a known engine release. An unknown code is a
// hard error, per spec §3/§7: migration must never silently guess.
func DetectStorageVersion(dbPath string) (StorageVersion, error) {
	path, err := catalogPath(dbPath)
	if err != nil {
		return StorageVersion{}, fmt.Errorf("engine: locating catalog: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return StorageVersion{}, fmt.Errorf("engine: opening catalog %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := f.Read(header); err != nil {
		return StorageVersion{}, fmt.Errorf("engine: reading catalog header: %w", err)
	}

	if header[0] != catalogMagic[0] || header[1] != catalogMagic[1] || header[2] != catalogMagic[2] {
		return StorageVersion{}, fmt.Errorf("engine: %s: bad catalog magic", path)
	}

	code := binary.LittleEndian.Uint64(header[4:12])
	release, ok := knownStorageVersions[code]
	if !ok {
		return StorageVersion{}, fmt.Errorf("%w: code %d", ErrUnknownStorageVersion, code)
	}

	return StorageVersion{Code: code, Release: release}, nil
}

// CatalogExists reports whether a catalog file is already present for the
// given database path, without validating its contents.
func CatalogExists(dbPath string) bool {
	path, err := catalogPath(dbPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ReleaseForCode maps a storage version code to its engine release string,
// per the table in spec §6. Used by MigrationEngine to validate a
// caller-supplied --new-version before provisioning environments.
func ReleaseForCode(code uint64) (string, bool) {
	release, ok := knownStorageVersions[code]
	return release, ok
}
