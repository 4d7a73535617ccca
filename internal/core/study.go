package core

import (
	"context"
	"errors"

	"github.com/JonMunkholm/studyquest/internal/logging"
)

// ExpPerMinute is the experience granted per minute of completed study.
const ExpPerMinute = 1

// CharacterView is a character together with its progress toward the next level.
type CharacterView struct {
	Character
	ExpRequired int `json:"expRequired"`
}

// GetCharacter returns the user's character, creating a fresh level 1
// character on first access.
func (s *Service) GetCharacter(ctx context.Context, userID int64) (CharacterView, error) {
	ch, err := s.store.EnsureCharacter(ctx, userID)
	if err != nil {
		return CharacterView{}, storeErr("get character", err)
	}
	return CharacterView{Character: ch, ExpRequired: ExpRequired(ch.Level)}, nil
}

// GrantExperience applies amount to the user's character in its own
// transaction. The character must already exist.
//
// A grant that loses a race with a concurrent grant for the same user is
// retried up to the configured limit; other failures are returned as is.
func (s *Service) GrantExperience(ctx context.Context, userID int64, amount int) (ExperienceResult, error) {
	logger := logging.WithFields(ctx, "user_id", userID, "amount", amount)

	var (
		result ExperienceResult
		err    error
	)
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		err = s.inTx(ctx, "grant experience", func(tx Tx) error {
			var err error
			result, err = ApplyExperience(ctx, tx, userID, amount)
			return err
		})
		if !errors.Is(err, ErrCharacterConflict) {
			break
		}
		logger.Debug("experience grant conflicted, retrying", "attempt", attempt+1)
	}
	if err != nil {
		return ExperienceResult{}, err
	}

	if result.LeveledUp {
		logger.Info("character leveled up",
			"previous_level", result.PreviousLevel,
			"new_level", result.NewLevel,
		)
	}
	return result, nil
}

// CompleteStudySession records minutes of study for the user and converts
// them to experience.
func (s *Service) CompleteStudySession(ctx context.Context, userID int64, minutes int) (ExperienceResult, error) {
	if minutes <= 0 {
		return ExperienceResult{}, Invalidf("study minutes must be positive, got %d", minutes)
	}
	if minutes > s.opts.MaxSessionMinutes {
		return ExperienceResult{}, Invalidf("study minutes must be at most %d, got %d", s.opts.MaxSessionMinutes, minutes)
	}

	if _, err := s.store.EnsureCharacter(ctx, userID); err != nil {
		return ExperienceResult{}, storeErr("complete study session", err)
	}
	return s.GrantExperience(ctx, userID, minutes*ExpPerMinute)
}
