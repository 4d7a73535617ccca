// Package migrate reads embedded SQL migration files shared by the store
// implementations. Each file may hold "-- +migrate Up" and
// "-- +migrate Down" sections; only the Up section is ever applied.
package migrate

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Table records which migration files have been applied.
const Table = "schema_migrations"

// File is one migration ready to execute.
type File struct {
	Name string
	Up   string
}

// Load returns the .sql files in the root of fsys in lexical order.
// Files whose Up section is empty are omitted.
func Load(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := ExtractUp(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		files = append(files, File{Name: name, Up: up})
	}
	return files, nil
}

// ExtractUp returns the SQL in the -- +migrate Up section, or the whole
// content when no markers are present.
func ExtractUp(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"

	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(up):]
	if downIdx := strings.Index(body, down); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}
