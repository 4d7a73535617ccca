package core

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/wordcsv"
)

// ListWordSets returns the user's word sets, newest first.
func (s *Service) ListWordSets(ctx context.Context, ownerID int64) ([]WordSet, error) {
	sets, err := s.store.ListWordSets(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list word sets", err)
	}
	if sets == nil {
		sets = []WordSet{}
	}
	return sets, nil
}

// DeleteWordSet removes a word set and its entries.
//
// Unlike reads, deletion distinguishes a missing set (ErrNotFound) from one
// owned by another user (ErrForbidden); the latter is left untouched.
func (s *Service) DeleteWordSet(ctx context.Context, ownerID, wordSetID int64) error {
	var removed int64
	err := s.inTx(ctx, "delete word set", func(tx Tx) error {
		set, err := tx.GetWordSet(ctx, wordSetID)
		if err != nil {
			return err
		}
		if set.OwnerID != ownerID {
			return fmt.Errorf("word set %d: %w", wordSetID, ErrForbidden)
		}

		removed, err = tx.DeleteWordEntries(ctx, wordSetID)
		if err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		n, err := tx.DeleteWordSet(ctx, wordSetID, ownerID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("word set %d: %w", wordSetID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.WithFields(ctx, "user_id", ownerID, "word_set_id", wordSetID).
		Info("word set deleted", "entries", removed)
	return nil
}

// WriteTemplate writes the downloadable word list template to w.
func (s *Service) WriteTemplate(w io.Writer) error {
	return wordcsv.WriteTemplate(w)
}
