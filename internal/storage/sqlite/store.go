// Package sqlite provides a SQLite-backed core.Store for local development,
// the operator CLI and tests.
//
// Transactions are opened with BEGIN IMMEDIATE, so a transaction holds the
// database write lock from its first statement. That gives LockCharacter the
// same guarantee a row lock gives on PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/storage/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store persists word sets and characters in SQLite.
type Store struct {
	*queries
	sqlDB *sql.DB
}

var _ core.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path. Migrations are not applied; call
// Migrate.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{queries: &queries{db: sqlDB}, sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Begin starts an immediate (write-locking) transaction.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{queries: &queries{db: tx}, tx: tx}, nil
}

// Migrate executes embedded migrations at most once per file.
func (s *Store) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	files, err := migrate.Load(sub)
	if err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrate.Table+` (
		name       TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, f := range files {
		if err := s.applyMigration(ctx, f); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, f migrate.File) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+migrate.Table+` (name, applied_at) VALUES (?, ?)`,
		f.Name, toMillis(time.Now()))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, f.Up); err != nil {
		return err
	}
	return tx.Commit()
}

// Tx is a core.Tx over a database/sql transaction.
type Tx struct {
	*queries
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type queries struct {
	db dbtx
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func (q *queries) CreateWordSet(ctx context.Context, ownerID int64, title string) (core.WordSet, error) {
	ws := core.WordSet{OwnerID: ownerID, Title: title}
	var createdAt int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO word_sets (user_id, set_title, created_at)
		 VALUES (?, ?, ?)
		 RETURNING id, created_at`,
		ownerID, title, toMillis(time.Now()),
	).Scan(&ws.ID, &createdAt)
	if err != nil {
		return core.WordSet{}, fmt.Errorf("insert word set: %w", err)
	}
	ws.CreatedAt = fromMillis(createdAt)
	return ws, nil
}

// InsertWordEntries inserts pairs through one prepared statement.
func (q *queries) InsertWordEntries(ctx context.Context, wordSetID int64, pairs []core.WordPair) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	stmt, err := q.db.PrepareContext(ctx,
		`INSERT INTO word_entries (word_set_id, question, answer) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare word entry insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, wordSetID, p.Question, p.Answer); err != nil {
			if isForeignKeyViolation(err) {
				return inserted, fmt.Errorf("word set %d: %w", wordSetID, core.ErrNotFound)
			}
			return inserted, fmt.Errorf("insert word entry: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func (q *queries) GetWordSet(ctx context.Context, id int64) (core.WordSet, error) {
	var (
		ws        core.WordSet
		createdAt int64
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, set_title, created_at FROM word_sets WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.OwnerID, &ws.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WordSet{}, fmt.Errorf("word set %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.WordSet{}, fmt.Errorf("get word set: %w", err)
	}
	ws.CreatedAt = fromMillis(createdAt)
	return ws, nil
}

func (q *queries) ListWordSets(ctx context.Context, ownerID int64) ([]core.WordSet, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, set_title, created_at
		 FROM word_sets
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list word sets: %w", err)
	}
	defer rows.Close()

	var sets []core.WordSet
	for rows.Next() {
		var (
			ws        core.WordSet
			createdAt int64
		)
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan word set: %w", err)
		}
		ws.CreatedAt = fromMillis(createdAt)
		sets = append(sets, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate word sets: %w", err)
	}
	return sets, nil
}

func (q *queries) ListWordEntries(ctx context.Context, wordSetID int64) ([]core.WordEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, word_set_id, question, answer
		 FROM word_entries
		 WHERE word_set_id = ?
		 ORDER BY id`, wordSetID)
	if err != nil {
		return nil, fmt.Errorf("list word entries: %w", err)
	}
	defer rows.Close()

	var entries []core.WordEntry
	for rows.Next() {
		var e core.WordEntry
		if err := rows.Scan(&e.ID, &e.WordSetID, &e.Question, &e.Answer); err != nil {
			return nil, fmt.Errorf("scan word entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate word entries: %w", err)
	}
	return entries, nil
}

func (q *queries) DeleteWordEntries(ctx context.Context, wordSetID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM word_entries WHERE word_set_id = ?`, wordSetID)
	if err != nil {
		return 0, fmt.Errorf("delete word entries: %w", err)
	}
	return res.RowsAffected()
}

func (q *queries) DeleteWordSet(ctx context.Context, id, ownerID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM word_sets WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete word set: %w", err)
	}
	return res.RowsAffected()
}

func (q *queries) GetCharacter(ctx context.Context, userID int64) (core.Character, error) {
	ch := core.Character{UserID: userID}
	err := q.db.QueryRowContext(ctx,
		`SELECT level, exp FROM characters WHERE user_id = ?`, userID,
	).Scan(&ch.Level, &ch.Exp)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Character{}, fmt.Errorf("character for user %d: %w", userID, core.ErrNotFound)
	}
	if err != nil {
		return core.Character{}, fmt.Errorf("get character: %w", err)
	}
	return ch, nil
}

// LockCharacter reads the character. Inside a Tx the immediate
// transaction already holds the write lock.
func (q *queries) LockCharacter(ctx context.Context, userID int64) (core.Character, error) {
	return q.GetCharacter(ctx, userID)
}

func (q *queries) EnsureCharacter(ctx context.Context, userID int64) (core.Character, error) {
	if _, err := q.db.ExecContext(ctx,
		`INSERT INTO characters (user_id, level, exp, updated_at)
		 VALUES (?, 1, 0, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, toMillis(time.Now()),
	); err != nil {
		return core.Character{}, fmt.Errorf("ensure character: %w", err)
	}
	return q.GetCharacter(ctx, userID)
}

// UpdateCharacter writes the new level and exp only if the row still
// matches prev.
func (q *queries) UpdateCharacter(ctx context.Context, prev core.Character, level, exp int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE characters
		 SET level = ?, exp = ?, updated_at = ?
		 WHERE user_id = ? AND level = ? AND exp = ?`,
		level, exp, toMillis(time.Now()), prev.UserID, prev.Level, prev.Exp,
	)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", prev.UserID, core.ErrCharacterConflict)
	}
	return nil
}
