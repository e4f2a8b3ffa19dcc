package migrator

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Migration represents a database migration.
type Migration struct {
	Version      int
	Name         string
	UpSQL        string
	Dependencies []int
}

var (
	filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_-]+)\.sql$`)
	upMarkerRegex = regexp.MustCompile(`^--\s*\+migrate\s+Up\s*$`)
	dependsRegex  = regexp.MustCompile(`^--\s*\+migrate\s+Depends:\s*(.*)$`)
)

// ParseMigration parses the contents of a single migration file.
func ParseMigration(filename string, content []byte) (*Migration, error) {
	matches := filenameRegex.FindStringSubmatch(filename)
	if matches == nil {
		return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", filename)
	}

	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in filename: %s", matches[1])
	}

	lines := strings.Split(string(content), "\n")

	upMarkerLine := -1
	for i, line := range lines {
		if upMarkerRegex.MatchString(strings.TrimSpace(line)) {
			upMarkerLine = i
			break
		}
	}
	if upMarkerLine < 0 {
		return nil, fmt.Errorf("missing '-- +migrate Up' marker in migration file: %s", filename)
	}

	var dependencies []int
	var body []string
	for _, raw := range lines[upMarkerLine+1:] {
		line := strings.TrimSpace(raw)
		if m := dependsRegex.FindStringSubmatch(line); m != nil {
			fields := strings.Fields(m[1])
			if len(fields) == 0 {
				return nil, fmt.Errorf("empty dependency list in migration file: %s", filename)
			}
			for _, f := range fields {
				dep, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("invalid dependency version '%s' in migration file: %s", f, filename)
				}
				if dep >= version {
					return nil, fmt.Errorf("migration %d cannot depend on version %d (dependencies must be older)", version, dep)
				}
				dependencies = append(dependencies, dep)
			}
			continue
		}
		// Comments and blank lines ahead of the first statement are dropped
		if len(body) == 0 && (line == "" || strings.HasPrefix(line, "--")) {
			continue
		}
		body = append(body, raw)
	}

	sql := strings.TrimSpace(strings.Join(body, "\n"))
	if sql == "" {
		return nil, fmt.Errorf("migration file contains no SQL statements: %s", filename)
	}

	return &Migration{
		Version:      version,
		Name:         matches[2],
		UpSQL:        sql,
		Dependencies: dependencies,
	}, nil
}

// LoadMigrations reads every NNN_name.sql file at the root of fsys and
// returns them sorted by version. Gaps, duplicates and dangling
// dependencies are rejected.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !filenameRegex.MatchString(entry.Name()) {
			continue
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		migration, err := ParseMigration(entry.Name(), content)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	versions := make(map[int]bool, len(migrations))
	for i, m := range migrations {
		if versions[m.Version] {
			return nil, fmt.Errorf("duplicate migration version: %d", m.Version)
		}
		versions[m.Version] = true

		if m.Version != i+1 {
			return nil, fmt.Errorf("gap in migration versions: expected %d, found %d", i+1, m.Version)
		}
	}

	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if !versions[dep] {
				return nil, fmt.Errorf("migration %d depends on non-existent version %d", m.Version, dep)
			}
		}
	}

	return migrations, nil
}
