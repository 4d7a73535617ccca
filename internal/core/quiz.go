package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"
)

// OptionsPerItem is the number of answer options a quiz item aims for.
const OptionsPerItem = 4

// Synthesizer turns word entries into multiple-choice quiz items.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer returns a Synthesizer whose distractor choice is fully
// determined by seed.
func NewSynthesizer(seed uint64) *Synthesizer {
	return &Synthesizer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Items builds one quiz item per entry, in entry order.
//
// Each item starts with the correct answer, followed by up to three distinct
// distractors drawn from the other entries' answers. Distractors equal to
// the correct answer are never used, and nothing is padded: a set with fewer
// than four distinct answers yields shorter option lists.
func (q *Synthesizer) Items(entries []WordEntry) []QuizItem {
	answers := lo.Map(entries, func(e WordEntry, _ int) string { return e.Answer })

	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]QuizItem, 0, len(entries))
	for i, e := range entries {
		pool := make([]string, 0, len(answers)-1)
		pool = append(pool, answers[:i]...)
		pool = append(pool, answers[i+1:]...)
		pool = lo.Without(pool, e.Answer)

		q.rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		distractors := lo.Uniq(pool)
		if len(distractors) > OptionsPerItem-1 {
			distractors = distractors[:OptionsPerItem-1]
		}

		options := make([]string, 0, OptionsPerItem)
		options = append(options, e.Answer)
		options = append(options, distractors...)

		items = append(items, QuizItem{
			Word:    e.Question,
			Correct: e.Answer,
			Options: options,
		})
	}
	return items
}

// BuildQuiz loads a word set owned by ownerID and synthesizes its quiz.
// A set that does not exist and a set owned by someone else both return
// ErrNotFound.
func (s *Service) BuildQuiz(ctx context.Context, ownerID, wordSetID int64) (*Quiz, error) {
	set, err := s.store.GetWordSet(ctx, wordSetID)
	if err != nil {
		return nil, storeErr("build quiz", err)
	}
	if set.OwnerID != ownerID {
		return nil, fmt.Errorf("build quiz: word set %d: %w", wordSetID, ErrNotFound)
	}

	entries, err := s.store.ListWordEntries(ctx, wordSetID)
	if err != nil {
		return nil, storeErr("build quiz: entries", err)
	}

	return &Quiz{
		SetName:  set.Title,
		WordList: s.quiz.Items(entries),
	}, nil
}
