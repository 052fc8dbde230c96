// Package cache optionally persists the registry's name -> rendered
// signature map across separate klorc invocations (§4.17, D8), so a
// signature change can be detected even when the file that changed
// hasn't been recompiled in the current process — the multi-process
// generalization of what internal/registry already does in-memory
// within one compilation.
//
// Built on database/sql over a driver registered by a blank import
// (sql.Open(driver, dsn)), narrowed from a general-purpose user-facing
// SQL binding to one fixed schema this package owns outright.
// modernc.org/sqlite is a pure-Go driver, so klorc needs no cgo
// toolchain to ship with caching enabled.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one cached definition: the rendered signature
// (registry.RenderSignature's output, not a reconstructable types.Chor)
// last seen for name in sourceFile, and the source file's mtime at that
// time.
type Entry struct {
	Name       string
	SourceFile string
	Mtime      time.Time
	Rendered   string
}

// Cache wraps a SQLite-backed store of Entry rows, one row per
// (name, source_file) pair.
type Cache struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path,
// ensuring its schema exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating schema: %w", err)
	}
	return &Cache{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS definitions (
	name        TEXT NOT NULL,
	source_file TEXT NOT NULL,
	mtime       INTEGER NOT NULL,
	rendered    TEXT NOT NULL,
	PRIMARY KEY (name, source_file)
);
`

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the most recently stored Entry for (name, sourceFile),
// if any.
func (c *Cache) Lookup(name, sourceFile string) (Entry, bool, error) {
	row := c.db.QueryRow(
		`SELECT mtime, rendered FROM definitions WHERE name = ? AND source_file = ?`,
		name, sourceFile,
	)
	var unixMtime int64
	var rendered string
	switch err := row.Scan(&unixMtime, &rendered); err {
	case nil:
		return Entry{Name: name, SourceFile: sourceFile, Mtime: time.Unix(unixMtime, 0), Rendered: rendered}, true, nil
	case sql.ErrNoRows:
		return Entry{}, false, nil
	default:
		return Entry{}, false, fmt.Errorf("cache: looking up %q in %s: %w", name, sourceFile, err)
	}
}

// Store upserts the current (mtime, rendered) pair for (name,
// sourceFile), replacing whatever was cached for that pair before.
func (c *Cache) Store(name, sourceFile string, mtime time.Time, rendered string) error {
	_, err := c.db.Exec(
		`INSERT INTO definitions (name, source_file, mtime, rendered) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name, source_file) DO UPDATE SET mtime = excluded.mtime, rendered = excluded.rendered`,
		name, sourceFile, mtime.Unix(), rendered,
	)
	if err != nil {
		return fmt.Errorf("cache: storing %q in %s: %w", name, sourceFile, err)
	}
	return nil
}

// CheckStale compares name/sourceFile's current rendered signature
// against the cached one (the stored mtime is not compared), reporting
// whether the
// signature changed since the last recorded compile — §4.7's
// "instructs the user to recompile dependents", extended across process
// boundaries. A definition never seen before is not stale (changed is
// false); the caller is expected to Store the current state afterward
// regardless of the outcome, so the next invocation has a baseline.
func CheckStale(c *Cache, name, sourceFile string, rendered string) (changed bool, previous string, err error) {
	entry, ok, err := c.Lookup(name, sourceFile)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "", nil
	}
	if entry.Rendered != rendered {
		return true, entry.Rendered, nil
	}
	return false, entry.Rendered, nil
}
