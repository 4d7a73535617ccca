package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"golang.org/x/text/encoding/korean"

	"github.com/JonMunkholm/studyquest/internal/wordcsv"
)

func newTestService(t *testing.T, store *memStore, opts Options) *Service {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	svc, err := NewService(store, opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func eucKR(t *testing.T, s string) *strings.Reader {
	t.Helper()
	enc, err := korean.EUCKR.NewEncoder().String(s)
	if err != nil {
		t.Fatalf("encode EUC-KR: %v", err)
	}
	return strings.NewReader(enc)
}

func TestNewService_RejectsUnknownEncoding(t *testing.T) {
	_, err := NewService(newMemStore(), Options{SourceEncoding: "klingon"})
	if err == nil {
		t.Fatal("NewService() expected error for unknown encoding")
	}
}

func TestUploadWordSet_DropsIncompleteRows(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, Options{})

	res, err := svc.UploadWordSet(context.Background(), 7, "  Fruit  ", eucKR(t, "Question,Answer\nApple,사과\n,바나나\n"))
	if err != nil {
		t.Fatalf("UploadWordSet() error = %v", err)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Errorf("Inserted/Skipped = %d/%d, want 1/1", res.Inserted, res.Skipped)
	}
	if res.WordSet.Title != "Fruit" || res.WordSet.OwnerID != 7 {
		t.Errorf("WordSet = %+v, want title Fruit owned by 7", res.WordSet)
	}
	if res.UploadID == "" {
		t.Error("UploadID should be set")
	}
	if res.Encoding != "euc-kr" {
		t.Errorf("Encoding = %q, want euc-kr", res.Encoding)
	}

	entries, _ := store.ListWordEntries(context.Background(), res.WordSet.ID)
	if len(entries) != 1 || entries[0].Question != "Apple" || entries[0].Answer != "사과" {
		t.Errorf("entries = %+v, want [Apple/사과]", entries)
	}
}

func TestUploadWordSet_Validation(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		body    string
		nilBody bool
		want    error
	}{
		{"empty title", "  ", "Question,Answer\na,b\n", false, ErrTitleRequired},
		{"no file", "t", "", true, ErrNoFile},
		{"empty file", "t", "", false, wordcsv.ErrEmptyFile},
		{"missing column", "t", "Question,Meaning\na,b\n", false, wordcsv.ErrMissingColumn},
		{"no usable rows", "t", "Question,Answer\n,b\na,\n", false, wordcsv.ErrNoRecords},
		{"too large", "t", "Question,Answer\n" + strings.Repeat("word,단어\n", 64), false, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(t, store, Options{MaxFileSize: 256})

			var err error
			if tt.nilBody {
				_, err = svc.UploadWordSet(context.Background(), 1, tt.title, nil)
			} else {
				_, err = svc.UploadWordSet(context.Background(), 1, tt.title, eucKR(t, tt.body))
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("UploadWordSet() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error %v should wrap ErrValidation", err)
			}
			if sets, _ := store.ListWordSets(context.Background(), 1); len(sets) != 0 {
				t.Errorf("failed upload left %d word sets", len(sets))
			}
		})
	}
}

func TestUploadWordSet_AtomicOnInsertFailure(t *testing.T) {
	store := newMemStore()
	store.failInsert = errors.New("disk full")
	svc := newTestService(t, store, Options{})

	_, err := svc.UploadWordSet(context.Background(), 3, "Broken", eucKR(t, "Question,Answer\nApple,사과\nPear,배\n"))
	if !errors.Is(err, ErrStore) {
		t.Fatalf("UploadWordSet() error = %v, want ErrStore", err)
	}

	sets, _ := store.ListWordSets(context.Background(), 3)
	if len(sets) != 0 {
		t.Errorf("word set listing changed after failed upload: %+v", sets)
	}
	if n := len(store.snapshot().entries); n != 0 {
		t.Errorf("failed upload left entries for %d sets", n)
	}
}

func TestUploadWordSet_UTF8WithBOM(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, Options{})

	body := "\uFEFFQuestion,Answer\nComputer,컴퓨터\n"
	res, err := svc.UploadWordSet(context.Background(), 1, "BOM", strings.NewReader(body))
	if err != nil {
		t.Fatalf("UploadWordSet() error = %v", err)
	}
	entries, _ := store.ListWordEntries(context.Background(), res.WordSet.ID)
	if len(entries) != 1 || entries[0].Answer != "컴퓨터" {
		t.Errorf("entries = %+v, want Computer/컴퓨터", entries)
	}
}

func TestListWordSets_NewestFirst(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, Options{})
	ctx := context.Background()

	for _, title := range []string{"first", "second"} {
		if _, err := svc.UploadWordSet(ctx, 1, title, eucKR(t, "Question,Answer\na,b\n")); err != nil {
			t.Fatalf("upload %s: %v", title, err)
		}
	}
	if _, err := svc.UploadWordSet(ctx, 2, "other", eucKR(t, "Question,Answer\na,b\n")); err != nil {
		t.Fatalf("upload other: %v", err)
	}

	sets, err := svc.ListWordSets(ctx, 1)
	if err != nil {
		t.Fatalf("ListWordSets() error = %v", err)
	}
	if len(sets) != 2 || sets[0].Title != "second" || sets[1].Title != "first" {
		t.Errorf("ListWordSets() = %+v, want [second first]", sets)
	}

	empty, err := svc.ListWordSets(ctx, 99)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListWordSets(99) = %v, %v; want empty non-nil slice", empty, err)
	}
}

func TestDeleteWordSet(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(t, store, Options{})

	res, err := svc.UploadWordSet(ctx, 1, "mine", eucKR(t, "Question,Answer\nApple,사과\nPear,배\n"))
	if err != nil {
		t.Fatalf("UploadWordSet() error = %v", err)
	}
	id := res.WordSet.ID

	if err := svc.DeleteWordSet(ctx, 2, id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("DeleteWordSet() by non-owner = %v, want ErrForbidden", err)
	}
	if entries, _ := store.ListWordEntries(ctx, id); len(entries) != 2 {
		t.Errorf("non-owner delete touched entries: %d left", len(entries))
	}

	if err := svc.DeleteWordSet(ctx, 1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteWordSet() missing = %v, want ErrNotFound", err)
	}

	if err := svc.DeleteWordSet(ctx, 1, id); err != nil {
		t.Fatalf("DeleteWordSet() by owner = %v", err)
	}
	if _, err := store.GetWordSet(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("word set still present after delete: %v", err)
	}
	if entries, _ := store.ListWordEntries(ctx, id); len(entries) != 0 {
		t.Errorf("%d entries left after delete", len(entries))
	}
}

func TestBuildQuiz_OwnershipIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(t, store, Options{})

	res, err := svc.UploadWordSet(ctx, 1, "Fruit", eucKR(t, "Question,Answer\nApple,사과\nPear,배\n"))
	if err != nil {
		t.Fatalf("UploadWordSet() error = %v", err)
	}

	_, errOther := svc.BuildQuiz(ctx, 2, res.WordSet.ID)
	_, errMissing := svc.BuildQuiz(ctx, 1, 999)
	if !errors.Is(errOther, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("BuildQuiz() errors = %v / %v, want ErrNotFound for both", errOther, errMissing)
	}
	if errors.Is(errOther, ErrForbidden) {
		t.Error("quiz reads must not reveal ownership")
	}

	quiz, err := svc.BuildQuiz(ctx, 1, res.WordSet.ID)
	if err != nil {
		t.Fatalf("BuildQuiz() error = %v", err)
	}
	if quiz.SetName != "Fruit" || len(quiz.WordList) != 2 {
		t.Fatalf("quiz = %+v, want Fruit with 2 items", quiz)
	}
	if quiz.WordList[0].Word != "Apple" || quiz.WordList[0].Correct != "사과" {
		t.Errorf("first item = %+v, want Apple/사과", quiz.WordList[0])
	}
}

func TestGetCharacter_CreatesOnFirstAccess(t *testing.T) {
	svc := newTestService(t, newMemStore(), Options{})

	view, err := svc.GetCharacter(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetCharacter() error = %v", err)
	}
	if view.Level != 1 || view.Exp != 0 || view.ExpRequired != ExpPerLevel {
		t.Errorf("GetCharacter() = %+v, want level 1, exp 0, required %d", view, ExpPerLevel)
	}
}

func TestCompleteStudySession(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.putCharacter(Character{UserID: 9, Level: 1, Exp: 80})
	svc := newTestService(t, store, Options{})

	res, err := svc.CompleteStudySession(ctx, 9, 250)
	if err != nil {
		t.Fatalf("CompleteStudySession() error = %v", err)
	}
	want := ExperienceResult{PreviousLevel: 1, NewLevel: 4, NewExp: 30, LeveledUp: true}
	if res != want {
		t.Errorf("CompleteStudySession() = %+v, want %+v", res, want)
	}

	ch, _ := store.GetCharacter(ctx, 9)
	if ch.Level != 4 || ch.Exp != 30 {
		t.Errorf("stored character = %+v, want level 4 exp 30", ch)
	}

	for _, minutes := range []int{0, -5, DefaultMaxSessionMinutes + 1} {
		if _, err := svc.CompleteStudySession(ctx, 9, minutes); !errors.Is(err, ErrValidation) {
			t.Errorf("CompleteStudySession(%d) = %v, want ErrValidation", minutes, err)
		}
	}
}

func TestGrantExperience_MissingCharacterIsIntegrityFault(t *testing.T) {
	svc := newTestService(t, newMemStore(), Options{})

	_, err := svc.GrantExperience(context.Background(), 404, 10)
	if !errors.Is(err, ErrIntegrity) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("GrantExperience() = %v, want ErrIntegrity wrapping ErrNotFound", err)
	}
	if errors.Is(err, ErrStore) {
		t.Error("integrity fault should not be reported as a store failure")
	}
}

func TestGrantExperience_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.putCharacter(Character{UserID: 1, Level: 1, Exp: 0})

	conflicts := 1
	store.beforeUpdate = func(st *memState) {
		if conflicts > 0 {
			conflicts--
			ch := st.characters[1]
			ch.Exp += 5
			st.characters[1] = ch
		}
	}

	svc := newTestService(t, store, Options{MaxRetries: 2})
	res, err := svc.GrantExperience(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GrantExperience() error = %v", err)
	}
	if res.NewExp != 10 {
		t.Errorf("NewExp = %d, want 10 (conflicting attempt must be discarded)", res.NewExp)
	}
}

func TestGrantExperience_GivesUpAfterRetries(t *testing.T) {
	store := newMemStore()
	store.putCharacter(Character{UserID: 1, Level: 1, Exp: 0})
	store.beforeUpdate = func(st *memState) {
		ch := st.characters[1]
		ch.Exp++
		st.characters[1] = ch
	}

	svc := newTestService(t, store, Options{MaxRetries: 0})
	if _, err := svc.GrantExperience(context.Background(), 1, 10); !errors.Is(err, ErrCharacterConflict) {
		t.Fatalf("GrantExperience() = %v, want ErrCharacterConflict", err)
	}
	if ch, _ := store.GetCharacter(context.Background(), 1); ch.Exp != 0 {
		t.Errorf("character changed after failed grant: %+v", ch)
	}
}

func TestCompleteStudySession_ConcurrentGrantsAllCount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(t, store, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CompleteStudySession(ctx, 1, 10); err != nil {
				t.Errorf("CompleteStudySession() error = %v", err)
			}
		}()
	}
	wg.Wait()

	ch, _ := store.GetCharacter(ctx, 1)
	if ch.Level != 3 || ch.Exp != 0 {
		t.Errorf("character = %+v, want level 3 exp 0 after 200 exp", ch)
	}
}
