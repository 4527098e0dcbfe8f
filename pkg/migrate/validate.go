package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
)

var migrationFileRe = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

// ValidateDir checks that every .sql file is named <version>_<slug>.sql,
// carries both goose sections, and that versions are unique.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		if !migrationFileRe.MatchString(name) {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if err := checkSections(filepath.Join(dir, name)); err != nil {
			return err
		}
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	return nil
}

func checkSections(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open migration %q: %w", path, err)
	}
	defer f.Close()

	var up, down bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			up = true
		case "-- +goose Down":
			if !up {
				return fmt.Errorf("migration %q has Down before Up", filepath.Base(path))
			}
			down = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read migration %q: %w", path, err)
	}
	if !up || !down {
		return fmt.Errorf("migration %q needs both -- +goose Up and -- +goose Down", filepath.Base(path))
	}
	return nil
}
