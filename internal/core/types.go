package core

import (
	"context"
	"time"
)

// WordSet is a named, user-owned collection of question/answer pairs.
type WordSet struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"userId"`
	Title     string    `json:"setTitle"`
	CreatedAt time.Time `json:"createdAt"`
}

// WordEntry is one question/answer pair within a word set.
type WordEntry struct {
	ID        int64  `json:"id"`
	WordSetID int64  `json:"wordSetId"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// WordPair is an entry that has not been persisted yet.
type WordPair struct {
	Question string
	Answer   string
}

// Character is a user's progression record.
// Invariant: Level >= 1 and 0 <= Exp < ExpRequired(Level).
type Character struct {
	UserID int64 `json:"userId"`
	Level  int   `json:"level"`
	Exp    int   `json:"exp"`
}

// QuizItem is a multiple-choice question derived from one word entry.
// Options[0] is always Correct.
type QuizItem struct {
	Word    string   `json:"word"`
	Correct string   `json:"correct"`
	Options []string `json:"options"`
}

// Quiz is the full question list for one word set.
type Quiz struct {
	SetName  string     `json:"setName"`
	WordList []QuizItem `json:"wordList"`
}

// ExperienceResult reports what a single experience grant did.
type ExperienceResult struct {
	PreviousLevel int  `json:"previousLevel"`
	NewLevel      int  `json:"newLevel"`
	NewExp        int  `json:"newExp"`
	LeveledUp     bool `json:"leveledUp"`
}

// UploadResult contains the final result of a word set upload.
type UploadResult struct {
	UploadID string        `json:"uploadId"`
	WordSet  WordSet       `json:"newSet"`
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Encoding string        `json:"encoding"`
	Duration time.Duration `json:"-"`
}

// Queries is the set of store operations available both on the store
// itself and inside a transaction.
//
// Lookups that find nothing return an error wrapping ErrNotFound.
type Queries interface {
	CreateWordSet(ctx context.Context, ownerID int64, title string) (WordSet, error)
	InsertWordEntries(ctx context.Context, wordSetID int64, pairs []WordPair) (int64, error)
	GetWordSet(ctx context.Context, id int64) (WordSet, error)
	ListWordSets(ctx context.Context, ownerID int64) ([]WordSet, error)
	ListWordEntries(ctx context.Context, wordSetID int64) ([]WordEntry, error)
	DeleteWordEntries(ctx context.Context, wordSetID int64) (int64, error)
	DeleteWordSet(ctx context.Context, id, ownerID int64) (int64, error)

	GetCharacter(ctx context.Context, userID int64) (Character, error)
	EnsureCharacter(ctx context.Context, userID int64) (Character, error)
	LedgerTx
}

// LedgerTx is what the experience ledger needs from the caller's transaction.
//
// LockCharacter must hold a write lock on the character row until the
// transaction ends (SELECT ... FOR UPDATE or an immediate write transaction).
// UpdateCharacter is a compare-and-swap against the previously loaded state
// and returns ErrCharacterConflict when the row no longer matches.
type LedgerTx interface {
	LockCharacter(ctx context.Context, userID int64) (Character, error)
	UpdateCharacter(ctx context.Context, prev Character, level, exp int) error
}

// Tx is a store transaction. Rollback after Commit must be a harmless no-op
// so callers can always defer it.
type Tx interface {
	Queries
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the relational store the core runs against.
type Store interface {
	Queries
	Begin(ctx context.Context) (Tx, error)
}
