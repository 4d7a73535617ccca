package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/wordcsv"
)

// UploadWordSet decodes, parses and stores an uploaded word list as a new
// word set owned by ownerID.
//
// The whole file is parsed before the store is touched. The word set row and
// all of its entries are written in one transaction, so a failure at any
// point leaves no trace of the upload.
func (s *Service) UploadWordSet(ctx context.Context, ownerID int64, title string, r io.Reader) (*UploadResult, error) {
	start := time.Now()
	uploadID := uuid.NewString()
	logger := logging.WithFields(ctx, "upload_id", uploadID, "user_id", ownerID)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if r == nil {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("upload rejected", "error", err, "active", s.limiter.ActiveCount())
		return nil, fmt.Errorf("upload word set: %w", err)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	raw, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("upload word set: read: %w", err)
	}
	if int64(len(raw)) > s.opts.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, wordcsv.ErrEmptyFile)
	}

	parsed, err := wordcsv.Parse(s.normalizer.NewReader(bytes.NewReader(raw)))
	if err != nil {
		if errors.Is(err, wordcsv.ErrNoRecords) && parsed != nil {
			logger.Info("upload has no usable rows", "skipped", parsed.Skipped)
		}
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	pairs := lo.Map(parsed.Records, func(rec wordcsv.Record, _ int) WordPair {
		return WordPair{Question: rec.Question, Answer: rec.Answer}
	})

	logger.Info("upload started",
		"set_title", title,
		"records", len(pairs),
		"skipped", parsed.Skipped,
		"encoding", s.normalizer.Name(),
	)

	var (
		set      WordSet
		inserted int64
	)
	err = s.inTx(ctx, "upload word set", func(tx Tx) error {
		var err error
		set, err = tx.CreateWordSet(ctx, ownerID, title)
		if err != nil {
			return fmt.Errorf("create word set: %w", err)
		}
		inserted, err = tx.InsertWordEntries(ctx, set.ID, pairs)
		if err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("upload failed", "error", err)
		return nil, err
	}

	result := &UploadResult{
		UploadID: uploadID,
		WordSet:  set,
		Inserted: int(inserted),
		Skipped:  parsed.Skipped,
		Encoding: s.normalizer.Name(),
		Duration: time.Since(start),
	}
	logger.Info("upload completed",
		"word_set_id", set.ID,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
	return result, nil
}
