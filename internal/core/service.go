package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/studyquest/internal/config"
	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/textenc"
)

// Options tunes a Service. Zero values fall back to package defaults,
// except MaxRetries where zero disables retrying.
type Options struct {
	MaxFileSize       int64
	UploadTimeout     time.Duration
	SourceEncoding    string
	MaxConcurrent     int
	MaxWaitTime       time.Duration
	MaxRetries        int
	MaxSessionMinutes int

	// Seed fixes the distractor shuffle. Zero seeds from the clock.
	Seed uint64
}

// Defaults for Options.
const (
	DefaultMaxFileSize       = 5 << 20
	DefaultUploadTimeout     = time.Minute
	DefaultMaxRetries        = 3
	DefaultMaxSessionMinutes = 24 * 60
)

// OptionsFromConfig maps application configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxFileSize:       cfg.Upload.MaxFileSize,
		UploadTimeout:     cfg.Upload.Timeout,
		SourceEncoding:    cfg.Upload.SourceEncoding,
		MaxConcurrent:     cfg.Upload.MaxConcurrent,
		MaxWaitTime:       cfg.Upload.MaxWaitTime,
		MaxRetries:        cfg.Study.MaxRetries,
		MaxSessionMinutes: cfg.Study.MaxSessionMinutes,
	}
}

// Service provides the study backend's business logic on top of a Store.
type Service struct {
	store      Store
	opts       Options
	normalizer *textenc.Normalizer
	limiter    *UploadLimiter
	quiz       *Synthesizer
}

// NewService creates a new Service instance.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxSessionMinutes <= 0 {
		opts.MaxSessionMinutes = DefaultMaxSessionMinutes
	}

	normalizer, err := textenc.New(opts.SourceEncoding)
	if err != nil {
		return nil, fmt.Errorf("core: source encoding: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Service{
		store:      store,
		opts:       opts,
		normalizer: normalizer,
		limiter:    NewUploadLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		quiz:       NewSynthesizer(seed),
	}, nil
}

// Limiter exposes the upload limiter for health checks and shutdown.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// Encoding returns the canonical name of the upload source encoding.
func (s *Service) Encoding() string {
	return s.normalizer.Name()
}

// inTx runs fn inside a store transaction. The transaction is committed
// when fn returns nil and rolled back on every other path.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return storeErr(op+": begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logging.FromContext(ctx).Warn("rollback failed", "op", op, "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return storeErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(op+": commit", err)
	}
	return nil
}
