package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/storage/postgres"
	"github.com/JonMunkholm/studyquest/internal/wordcsv"
)

// formOverhead is the multipart framing allowed on top of the file itself.
const formOverhead = 64 << 10

// handleDownloadTemplate serves the blank word list CSV.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wordcsv.TemplateFileName))
	if err := s.service.WriteTemplate(w); err != nil {
		logging.FromContext(r.Context()).Warn("template write failed", "error", err)
	}
}

type uploadResponse struct {
	Message   string       `json:"message"`
	WordSetID int64        `json:"wordSetId"`
	NewSet    core.WordSet `json:"newSet"`
	Inserted  int          `json:"inserted"`
	Skipped   int          `json:"skipped"`
	UploadID  string       `json:"uploadId"`
}

// handleUpload accepts a multipart form with a "wordFile" CSV and a
// "setTitle" field and stores it as a new word set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	if err := r.ParseMultipartForm(maxSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, core.ErrFileTooLarge)
			return
		}
		respondError(w, r, core.Invalidf("invalid form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var src io.Reader
	file, _, err := r.FormFile("wordFile")
	switch {
	case err == nil:
		defer file.Close()
		src = file
	case !errors.Is(err, http.ErrMissingFile):
		respondError(w, r, core.Invalidf("read form file: %v", err))
		return
	}

	result, err := s.service.UploadWordSet(r.Context(), userID, r.FormValue("setTitle"), src)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, uploadResponse{
		Message:   "word set created",
		WordSetID: result.WordSet.ID,
		NewSet:    result.WordSet,
		Inserted:  result.Inserted,
		Skipped:   result.Skipped,
		UploadID:  result.UploadID,
	})
}

// handleListWordSets returns the caller's word sets, newest first.
func (s *Server) handleListWordSets(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sets, err := s.service.ListWordSets(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"wordsets": sets})
}

// handleQuiz builds a multiple-choice quiz from one of the caller's sets.
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	wordSetID, err := wordSetParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	quiz, err := s.service.BuildQuiz(r.Context(), userID, wordSetID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, quiz)
}

// handleDeleteWordSet removes a set and its entries.
func (s *Server) handleDeleteWordSet(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	wordSetID, err := wordSetParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.DeleteWordSet(r.Context(), userID, wordSetID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "word set deleted"})
}

type sessionRequest struct {
	Minutes int `json:"minutes"`
}

type sessionResponse struct {
	core.ExperienceResult
	ExpRequired int `json:"expRequired"`
}

// handleCompleteSession converts study minutes into experience.
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req sessionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, core.Invalidf("invalid session body: %v", err))
		return
	}

	result, err := s.service.CompleteStudySession(r.Context(), userID, req.Minutes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse{
		ExperienceResult: result,
		ExpRequired:      core.ExpRequired(result.NewLevel),
	})
}

// handleCharacter returns the caller's character, creating it on first use.
func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.service.GetCharacter(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Uploads  core.UploadLimiterStatus `json:"uploads"`
	Pool     *postgres.PoolStats      `json:"pool,omitempty"`
}

// poolReporter is implemented by stores backed by a connection pool.
type poolReporter interface {
	Stats() postgres.PoolStats
}

// handleHealth reports store reachability and upload slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Uploads: s.service.Limiter().Status()}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check: store unreachable", "error", err)
		resp.Status, resp.Database = "degraded", "unreachable"
		status = http.StatusServiceUnavailable
	}
	if pr, ok := s.db.(poolReporter); ok {
		stats := pr.Stats()
		resp.Pool = &stats
	}
	writeJSON(w, r, status, resp)
}
