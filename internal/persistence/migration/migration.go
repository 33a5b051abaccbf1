package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidMigrationFile indicates that a migration file name or body is malformed.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrDuplicateVersion indicates that multiple migrations share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch indicates that an applied migration was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Migration represents a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Name        string
	SQL         string
	Checksum    string
}

// Error wraps migration failures with the version and step that failed.
type Error struct {
	Version   int
	Name      string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("migration %03d (%s): %s: %v", e.Version, e.Name, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration (%s): %s: %v", e.Name, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Scan reads every *.sql file under dir in fsys and returns them ordered by version.
func Scan(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, &Error{Name: dir, Operation: "read directory", Err: err}
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		m, err := parseFileName(entry.Name())
		if err != nil {
			return nil, &Error{Name: entry.Name(), Operation: "validate filename", Err: err}
		}
		if existing, ok := seen[m.Version]; ok {
			return nil, &Error{
				Version:   m.Version,
				Name:      entry.Name(),
				Operation: "check duplicates",
				Err:       fmt.Errorf("%w: also declared by %s", ErrDuplicateVersion, existing),
			}
		}
		seen[m.Version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, &Error{Version: m.Version, Name: entry.Name(), Operation: "read file", Err: err}
		}
		if strings.TrimSpace(stripComments(string(body))) == "" {
			return nil, &Error{Version: m.Version, Name: entry.Name(), Operation: "parse SQL", Err: fmt.Errorf("%w: no statements", ErrInvalidMigrationFile)}
		}
		m.SQL = string(body)
		m.Checksum = checksum(m.SQL)
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseFileName(name string) (Migration, error) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if len(matches) != 3 {
		return Migration{}, fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name)
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil || version <= 0 {
		return Migration{}, fmt.Errorf("%w: version %q must be a positive number", ErrInvalidMigrationFile, matches[1])
	}
	return Migration{
		Version:     version,
		Description: strings.ReplaceAll(matches[2], "_", " "),
		Name:        name,
	}, nil
}

func stripComments(sql string) string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
