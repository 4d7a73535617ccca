package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/studyquest/internal/core"
)

// currentUser returns the user stored by middleware.Identity. Routes are
// only mounted behind that middleware, so a missing id is a wiring fault.
func currentUser(r *http.Request) (int64, error) {
	userID, ok := core.UserIDFromContext(r.Context())
	if !ok {
		return 0, core.ErrIntegrity
	}
	return userID, nil
}

// wordSetParam parses the {wordSetID} path parameter.
func wordSetParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "wordSetID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalidf("invalid word set id %q", raw)
	}
	return id, nil
}
