package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// environmentMarkerFile names the file recording which engine version a
// provisioned environment directory corresponds to.
const environmentMarkerFile = "engine-version.txt"

// provisionEnvironment materializes an isolated runtime environment for
// version under root, per spec §4.2: "an existing environment directory
// for the same version is removed and recreated to guarantee a clean
// state." Returns the environment's directory, remembered by callers as
// the --env argument passed to migrate-step subprocesses.
func provisionEnvironment(root string, version uint64) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("v%d", version))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("migration: clearing existing environment: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("migration: creating environment directory: %w", err)
	}
	marker := filepath.Join(dir, environmentMarkerFile)
	if err := os.WriteFile(marker, []byte(strconv.FormatUint(version, 10)), 0o644); err != nil {
		return "", fmt.Errorf("migration: writing environment marker: %w", err)
	}
	return dir, nil
}
