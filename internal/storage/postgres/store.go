// Package postgres implements core.Store on PostgreSQL using pgx.
//
// Character updates are guarded twice: LockCharacter takes a row lock with
// SELECT ... FOR UPDATE, and UpdateCharacter only writes when the row still
// holds the values that were read.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/studyquest/internal/config"
	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/storage/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes.
const (
	codeForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	*queries
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: &queries{db: pool}, pool: pool}
}

// Open connects a pool configured from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin starts a read-committed transaction.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{queries: &queries{db: tx}, tx: tx}, nil
}

// Migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	files, err := migrate.Load(sub)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrate.Table+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, f := range files {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`INSERT INTO `+migrate.Table+` (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, f.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, f.Up)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
	}
	return nil
}

// Tx is a core.Tx over a pgx transaction.
type Tx struct {
	*queries
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

type queries struct {
	db DBTX
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrNotFound)
	}
	return err
}

func (q *queries) CreateWordSet(ctx context.Context, ownerID int64, title string) (core.WordSet, error) {
	var ws core.WordSet
	err := q.db.QueryRow(ctx, `
		INSERT INTO word_sets (user_id, set_title)
		VALUES ($1, $2)
		RETURNING id, user_id, set_title, created_at`,
		ownerID, title,
	).Scan(&ws.ID, &ws.OwnerID, &ws.Title, &ws.CreatedAt)
	if err != nil {
		return core.WordSet{}, fmt.Errorf("insert word set: %w", err)
	}
	return ws, nil
}

// InsertWordEntries bulk loads pairs with COPY.
func (q *queries) InsertWordEntries(ctx context.Context, wordSetID int64, pairs []core.WordPair) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	n, err := q.db.CopyFrom(ctx,
		pgx.Identifier{"word_entries"},
		[]string{"word_set_id", "question", "answer"},
		pgx.CopyFromSlice(len(pairs), func(i int) ([]any, error) {
			return []any{wordSetID, pairs[i].Question, pairs[i].Answer}, nil
		}),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return 0, fmt.Errorf("word set %d: %w", wordSetID, core.ErrNotFound)
		}
		return 0, fmt.Errorf("copy word entries: %w", err)
	}
	return n, nil
}

func (q *queries) GetWordSet(ctx context.Context, id int64) (core.WordSet, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, set_title, created_at
		FROM word_sets
		WHERE id = $1`, id)
	if err != nil {
		return core.WordSet{}, fmt.Errorf("get word set: %w", err)
	}
	ws, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[core.WordSet])
	if err != nil {
		return core.WordSet{}, notFound(err, "word set %d", id)
	}
	return ws, nil
}

func (q *queries) ListWordSets(ctx context.Context, ownerID int64) ([]core.WordSet, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, set_title, created_at
		FROM word_sets
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list word sets: %w", err)
	}
	sets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.WordSet])
	if err != nil {
		return nil, fmt.Errorf("scan word sets: %w", err)
	}
	return sets, nil
}

func (q *queries) ListWordEntries(ctx context.Context, wordSetID int64) ([]core.WordEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, word_set_id, question, answer
		FROM word_entries
		WHERE word_set_id = $1
		ORDER BY id`, wordSetID)
	if err != nil {
		return nil, fmt.Errorf("list word entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.WordEntry])
	if err != nil {
		return nil, fmt.Errorf("scan word entries: %w", err)
	}
	return entries, nil
}

func (q *queries) DeleteWordEntries(ctx context.Context, wordSetID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM word_entries WHERE word_set_id = $1`, wordSetID)
	if err != nil {
		return 0, fmt.Errorf("delete word entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *queries) DeleteWordSet(ctx context.Context, id, ownerID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM word_sets WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete word set: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *queries) GetCharacter(ctx context.Context, userID int64) (core.Character, error) {
	return q.character(ctx, `SELECT user_id, level, exp FROM characters WHERE user_id = $1`, userID)
}

// LockCharacter reads the character and holds its row lock until the
// enclosing transaction ends.
func (q *queries) LockCharacter(ctx context.Context, userID int64) (core.Character, error) {
	return q.character(ctx, `SELECT user_id, level, exp FROM characters WHERE user_id = $1 FOR UPDATE`, userID)
}

func (q *queries) character(ctx context.Context, sql string, userID int64) (core.Character, error) {
	rows, err := q.db.Query(ctx, sql, userID)
	if err != nil {
		return core.Character{}, fmt.Errorf("get character: %w", err)
	}
	ch, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[core.Character])
	if err != nil {
		return core.Character{}, notFound(err, "character for user %d", userID)
	}
	return ch, nil
}

func (q *queries) EnsureCharacter(ctx context.Context, userID int64) (core.Character, error) {
	if _, err := q.db.Exec(ctx, `
		INSERT INTO characters (user_id, level, exp)
		VALUES ($1, 1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return core.Character{}, fmt.Errorf("ensure character: %w", err)
	}
	return q.GetCharacter(ctx, userID)
}

// UpdateCharacter writes the new level and exp only if the row still
// matches prev.
func (q *queries) UpdateCharacter(ctx context.Context, prev core.Character, level, exp int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE characters
		SET level = $1, exp = $2, updated_at = now()
		WHERE user_id = $3 AND level = $4 AND exp = $5`,
		level, exp, prev.UserID, prev.Level, prev.Exp,
	)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", prev.UserID, core.ErrCharacterConflict)
	}
	return nil
}

// PoolStats is a snapshot of pool usage for health checks.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// Stats reports pool usage.
func (s *Store) Stats() PoolStats {
	st := s.pool.Stat()
	return PoolStats{
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
		MaxConns:      st.MaxConns(),
	}
}
