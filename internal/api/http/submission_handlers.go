package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/langprep/langprep/internal/rbac"
	"github.com/langprep/langprep/internal/submission"
)

// POST /tests/{testID}/submissions — the learner is the authenticated
// subject; answers are validated against the test's question set.
func SubmitHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers []submission.Answer `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userID := rbac.SubjectFromContext(r.Context())
		sub, err := svc.Submit(r.Context(), userID, chi.URLParam(r, "testID"), req.Answers)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// POST /submissions/{submissionID}/grade
func GradeHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := rbac.PrincipalFromContext(r.Context())
		if !rbac.CanGrade(caller) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Score    float64 `json:"score"`
			Feedback string  `json:"feedback,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub, err := svc.Grade(r.Context(), chi.URLParam(r, "submissionID"), caller.ID, req.Score, req.Feedback)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func GetSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.Get(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !rbac.CanView(sub, rbac.PrincipalFromContext(r.Context())) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// GET /submissions?test_id=&user_id=&family=&status=&limit=&offset=
// Non-admin callers are scoped to their own submissions.
func ListSubmissionsHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := rbac.PrincipalFromContext(r.Context())
		opts := submission.ListOpts{
			TestID: strings.TrimSpace(r.URL.Query().Get("test_id")),
			UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
			Family: strings.TrimSpace(r.URL.Query().Get("family")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if !caller.IsAdmin() {
			opts.UserID = caller.ID
		}
		list, err := svc.List(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
