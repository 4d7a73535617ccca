package core

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ExpPerLevel is the experience needed to advance one level.
const ExpPerLevel = 100

// MaxExperienceGrant bounds a single grant. It keeps the level-up loop
// short and the stored values inside the INTEGER columns.
const MaxExperienceGrant = 1_000_000

// ExpRequired returns the experience needed to leave level.
// It is the same for every level today; callers go through this function so
// the curve can change without touching the level-up loop.
func ExpRequired(level int) int {
	return ExpPerLevel
}

// ApplyExperience adds amount to the user's character inside tx and resolves
// any number of level-ups. It neither begins nor commits tx: on error the
// caller must roll back.
//
// A user without a character row is an integrity fault; the returned error
// wraps both ErrIntegrity and ErrNotFound.
func ApplyExperience(ctx context.Context, tx LedgerTx, userID int64, amount int) (ExperienceResult, error) {
	if amount < 0 {
		return ExperienceResult{}, ErrNegativeAmount
	}
	if amount > MaxExperienceGrant {
		return ExperienceResult{}, fmt.Errorf("%w: got %d, limit %d", ErrAmountTooLarge, amount, MaxExperienceGrant)
	}

	ch, err := tx.LockCharacter(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ExperienceResult{}, fmt.Errorf("%w: character for user %d: %w", ErrIntegrity, userID, ErrNotFound)
	}
	if err != nil {
		return ExperienceResult{}, storeErr("apply experience: load", err)
	}

	if amount > math.MaxInt32-ch.Exp {
		return ExperienceResult{}, fmt.Errorf("%w: exp %d + %d overflows", ErrAmountTooLarge, ch.Exp, amount)
	}

	level, exp := ch.Level, ch.Exp+amount
	leveledUp := false
	for required := ExpRequired(level); exp >= required; required = ExpRequired(level) {
		exp -= required
		level++
		leveledUp = true
	}

	if err := tx.UpdateCharacter(ctx, ch, level, exp); err != nil {
		return ExperienceResult{}, storeErr("apply experience: save", err)
	}

	return ExperienceResult{
		PreviousLevel: ch.Level,
		NewLevel:      level,
		NewExp:        exp,
		LeveledUp:     leveledUp,
	}, nil
}
