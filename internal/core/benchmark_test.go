package core

import (
	"context"
	"fmt"
	"testing"
)

// ============================================================================
// Quiz Synthesis Benchmarks
// ============================================================================

func benchEntries(n int) []WordEntry {
	entries := make([]WordEntry, n)
	for i := range entries {
		entries[i] = WordEntry{
			ID:       int64(i + 1),
			Question: fmt.Sprintf("word-%d", i),
			Answer:   fmt.Sprintf("뜻-%d", i),
		}
	}
	return entries
}

// BenchmarkSynthesizer_Items measures quiz generation for a typical set.
func BenchmarkSynthesizer_Items(b *testing.B) {
	entries := benchEntries(50)
	q := NewSynthesizer(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Items(entries)
	}
}

// BenchmarkSynthesizer_ItemsLarge covers the worst case the upload limit
// allows: every item shuffles a pool the size of the set.
func BenchmarkSynthesizer_ItemsLarge(b *testing.B) {
	entries := benchEntries(2000)
	q := NewSynthesizer(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Items(entries)
	}
}

// ============================================================================
// Experience Ledger Benchmarks
// ============================================================================

type benchLedger struct{ ch Character }

func (l *benchLedger) LockCharacter(context.Context, int64) (Character, error) { return l.ch, nil }

func (l *benchLedger) UpdateCharacter(_ context.Context, _ Character, level, exp int) error {
	l.ch.Level, l.ch.Exp = level, exp
	return nil
}

// BenchmarkApplyExperience measures the level-up loop on a large grant.
func BenchmarkApplyExperience(b *testing.B) {
	ctx := context.Background()
	tx := &benchLedger{ch: Character{UserID: 1, Level: 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tx.ch.Level, tx.ch.Exp = 1, 0
		if _, err := ApplyExperience(ctx, tx, 1, 10_000); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Error Mapping Benchmarks
// ============================================================================

// BenchmarkMapError covers both the sentinel path and the pattern fallback.
func BenchmarkMapError(b *testing.B) {
	errs := []error{
		ErrTitleRequired,
		fmt.Errorf("upload word set: %w", ErrTooManyUploads),
		storeErr("insert", fmt.Errorf("dial tcp: connection refused")),
		fmt.Errorf("something else"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, err := range errs {
			MapError(err)
		}
	}
}
