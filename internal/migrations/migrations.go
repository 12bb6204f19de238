package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

// MigrationsDir locates the schema files relative to the working
// directory. Tests may point it somewhere else.
var MigrationsDir = "scripts/migrations"

// GetInitialSchema reads the full schema. Package tests run with a
// working directory one or two levels below the repository root, so
// the parent-relative paths are tried when the direct one misses.
func GetInitialSchema() (string, error) {
	searchPaths := []string{
		filepath.Join(MigrationsDir, "001_initial_schema.sql"),
		filepath.Join("..", "..", MigrationsDir, "001_initial_schema.sql"),
		filepath.Join("..", MigrationsDir, "001_initial_schema.sql"),
	}

	for _, path := range searchPaths {
		content, err := os.ReadFile(path)
		if err == nil {
			return string(content), nil
		}
	}

	return "", fmt.Errorf("schema file 001_initial_schema.sql not found near %s", MigrationsDir)
}
