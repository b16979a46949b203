// Package migrate applies and authors the goose SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are authored, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrator runs goose against one database. Goose keeps its dialect and base
// filesystem in package state, so a Migrator re-applies both before every call.
type Migrator struct {
	db      *sql.DB
	dir     string
	dialect string
	onDisk  bool
}

type Option func(*Migrator)

// WithDir reads migrations from a directory on disk instead of the compiled-in set.
func WithDir(dir string) Option {
	return func(m *Migrator) {
		if dir = strings.TrimSpace(dir); dir != "" {
			m.dir, m.onDisk = dir, true
		}
	}
}

func WithDialect(dialect string) Option {
	return func(m *Migrator) { m.dialect = dialect }
}

func New(db *sql.DB, opts ...Option) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	m := &Migrator{db: db, dir: embeddedDir, dialect: "postgres"}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Migrator) prepare() error {
	if m.onDisk {
		goose.SetBaseFS(nil)
	} else {
		goose.SetBaseFS(embedded)
	}
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command such as up, down, status or redo.
func (m *Migrator) Run(ctx context.Context, command string, args ...string) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, m.db, m.dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func (m *Migrator) Version() (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// To moves the schema up or down until it sits at target (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, target string) error {
	version, err := ParseVersion(target)
	if err != nil {
		return err
	}
	current, err := m.Version()
	if err != nil {
		return err
	}
	switch {
	case current < version:
		err = goose.UpToContext(ctx, m.db, m.dir, version)
	case current > version:
		err = goose.DownToContext(ctx, m.db, m.dir, version)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, version, err)
	}
	return nil
}

func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}
