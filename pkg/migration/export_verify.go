package migration

import "github.com/kgstore/kgstore/pkg/engine"

// verifyExportNonEmpty asserts the EXPORT step produced a readable schema
// marker file, per spec §4.2: "assert that the export produced a
// non-empty schema file."
func verifyExportNonEmpty(dir string) error {
	_, err := engine.VerifyExportSchema(dir)
	return err
}
