package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// memState is one consistent snapshot of the fake store.
type memState struct {
	nextSetID   int64
	nextEntryID int64
	sets        map[int64]WordSet
	entries     map[int64][]WordEntry
	characters  map[int64]Character
}

func (s *memState) clone() *memState {
	c := &memState{
		nextSetID:   s.nextSetID,
		nextEntryID: s.nextEntryID,
		sets:        maps.Clone(s.sets),
		entries:     make(map[int64][]WordEntry, len(s.entries)),
		characters:  maps.Clone(s.characters),
	}
	for k, v := range s.entries {
		c.entries[k] = slices.Clone(v)
	}
	return c
}

// memStore is an in-memory Store. Transactions work on a private copy that
// replaces the shared state on commit; a single writer lock serializes them
// the way SQLite's immediate transactions do.
type memStore struct {
	writeMu sync.Mutex

	mu    sync.Mutex
	state *memState

	// failInsert makes InsertWordEntries fail after it has written.
	failInsert error
	// beforeUpdate runs inside UpdateCharacter before the compare and may
	// change the transaction's view to simulate a concurrent writer.
	beforeUpdate func(st *memState)
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		nextSetID:   1,
		nextEntryID: 1,
		sets:        map[int64]WordSet{},
		entries:     map[int64][]WordEntry{},
		characters:  map[int64]Character{},
	}}
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	m.writeMu.Lock()
	return &memTx{store: m, st: m.snapshot()}, nil
}

// Non-transactional calls run in a one-statement transaction.
func (m *memStore) auto(fn func(q *memTx) error) error {
	tx, _ := m.Begin(context.Background())
	defer tx.Rollback(context.Background())
	if err := fn(tx.(*memTx)); err != nil {
		return err
	}
	return tx.Commit(context.Background())
}

func (m *memStore) CreateWordSet(ctx context.Context, ownerID int64, title string) (ws WordSet, err error) {
	err = m.auto(func(q *memTx) error { ws, err = q.CreateWordSet(ctx, ownerID, title); return err })
	return ws, err
}

func (m *memStore) InsertWordEntries(ctx context.Context, id int64, pairs []WordPair) (n int64, err error) {
	err = m.auto(func(q *memTx) error { n, err = q.InsertWordEntries(ctx, id, pairs); return err })
	return n, err
}

func (m *memStore) GetWordSet(ctx context.Context, id int64) (WordSet, error) {
	return (&memTx{store: m, st: m.snapshot()}).GetWordSet(ctx, id)
}

func (m *memStore) ListWordSets(ctx context.Context, ownerID int64) ([]WordSet, error) {
	return (&memTx{store: m, st: m.snapshot()}).ListWordSets(ctx, ownerID)
}

func (m *memStore) ListWordEntries(ctx context.Context, id int64) ([]WordEntry, error) {
	return (&memTx{store: m, st: m.snapshot()}).ListWordEntries(ctx, id)
}

func (m *memStore) DeleteWordEntries(ctx context.Context, id int64) (n int64, err error) {
	err = m.auto(func(q *memTx) error { n, err = q.DeleteWordEntries(ctx, id); return err })
	return n, err
}

func (m *memStore) DeleteWordSet(ctx context.Context, id, ownerID int64) (n int64, err error) {
	err = m.auto(func(q *memTx) error { n, err = q.DeleteWordSet(ctx, id, ownerID); return err })
	return n, err
}

func (m *memStore) GetCharacter(ctx context.Context, userID int64) (Character, error) {
	return (&memTx{store: m, st: m.snapshot()}).GetCharacter(ctx, userID)
}

func (m *memStore) EnsureCharacter(ctx context.Context, userID int64) (ch Character, err error) {
	err = m.auto(func(q *memTx) error { ch, err = q.EnsureCharacter(ctx, userID); return err })
	return ch, err
}

func (m *memStore) LockCharacter(ctx context.Context, userID int64) (Character, error) {
	return m.GetCharacter(ctx, userID)
}

func (m *memStore) UpdateCharacter(ctx context.Context, prev Character, level, exp int) error {
	return m.auto(func(q *memTx) error { return q.UpdateCharacter(ctx, prev, level, exp) })
}

// putCharacter seeds a character directly.
func (m *memStore) putCharacter(ch Character) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.characters[ch.UserID] = ch
}

type memTx struct {
	store *memStore
	st    *memState
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("memstore: transaction already closed")
	}
	t.done = true
	t.store.mu.Lock()
	t.store.state = t.st
	t.store.mu.Unlock()
	t.store.writeMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writeMu.Unlock()
	return nil
}

func (t *memTx) CreateWordSet(ctx context.Context, ownerID int64, title string) (WordSet, error) {
	ws := WordSet{ID: t.st.nextSetID, OwnerID: ownerID, Title: title, CreatedAt: time.Now().UTC()}
	t.st.nextSetID++
	t.st.sets[ws.ID] = ws
	return ws, nil
}

func (t *memTx) InsertWordEntries(ctx context.Context, wordSetID int64, pairs []WordPair) (int64, error) {
	if _, ok := t.st.sets[wordSetID]; !ok {
		return 0, errors.New("memstore: foreign key violation")
	}
	for _, p := range pairs {
		t.st.entries[wordSetID] = append(t.st.entries[wordSetID], WordEntry{
			ID: t.st.nextEntryID, WordSetID: wordSetID, Question: p.Question, Answer: p.Answer,
		})
		t.st.nextEntryID++
	}
	if t.store.failInsert != nil {
		return 0, t.store.failInsert
	}
	return int64(len(pairs)), nil
}

func (t *memTx) GetWordSet(ctx context.Context, id int64) (WordSet, error) {
	ws, ok := t.st.sets[id]
	if !ok {
		return WordSet{}, fmt.Errorf("word set %d: %w", id, ErrNotFound)
	}
	return ws, nil
}

func (t *memTx) ListWordSets(ctx context.Context, ownerID int64) ([]WordSet, error) {
	var out []WordSet
	for _, ws := range t.st.sets {
		if ws.OwnerID == ownerID {
			out = append(out, ws)
		}
	}
	slices.SortFunc(out, func(a, b WordSet) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (t *memTx) ListWordEntries(ctx context.Context, wordSetID int64) ([]WordEntry, error) {
	return slices.Clone(t.st.entries[wordSetID]), nil
}

func (t *memTx) DeleteWordEntries(ctx context.Context, wordSetID int64) (int64, error) {
	n := int64(len(t.st.entries[wordSetID]))
	delete(t.st.entries, wordSetID)
	return n, nil
}

func (t *memTx) DeleteWordSet(ctx context.Context, id, ownerID int64) (int64, error) {
	ws, ok := t.st.sets[id]
	if !ok || ws.OwnerID != ownerID {
		return 0, nil
	}
	delete(t.st.sets, id)
	return 1, nil
}

func (t *memTx) GetCharacter(ctx context.Context, userID int64) (Character, error) {
	ch, ok := t.st.characters[userID]
	if !ok {
		return Character{}, fmt.Errorf("character %d: %w", userID, ErrNotFound)
	}
	return ch, nil
}

func (t *memTx) EnsureCharacter(ctx context.Context, userID int64) (Character, error) {
	if ch, ok := t.st.characters[userID]; ok {
		return ch, nil
	}
	ch := Character{UserID: userID, Level: 1, Exp: 0}
	t.st.characters[userID] = ch
	return ch, nil
}

func (t *memTx) LockCharacter(ctx context.Context, userID int64) (Character, error) {
	return t.GetCharacter(ctx, userID)
}

func (t *memTx) UpdateCharacter(ctx context.Context, prev Character, level, exp int) error {
	if hook := t.store.beforeUpdate; hook != nil {
		hook(t.st)
	}
	if cur, ok := t.st.characters[prev.UserID]; !ok || cur != prev {
		return ErrCharacterConflict
	}
	t.st.characters[prev.UserID] = Character{UserID: prev.UserID, Level: level, Exp: exp}
	return nil
}
