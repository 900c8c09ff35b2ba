package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/langprep/langprep/internal/content"
	"github.com/langprep/langprep/internal/rbac"
)

func CreateTestHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in content.CreateTestInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		in.CreatedBy = rbac.SubjectFromContext(r.Context())
		t, err := svc.CreateTest(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// GET /tests/{testID} returns the full graph. Answer keys are stripped for
// non-admin callers.
func GetTestHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		g, err := svc.LoadWithChildren(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !rbac.PrincipalFromContext(r.Context()).IsAdmin() {
			for sid, qs := range g.Questions {
				for i := range qs {
					qs[i].AnswerKey = nil
				}
				g.Questions[sid] = qs
			}
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func ListTestsHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := content.ListOpts{
			Family: strings.TrimSpace(r.URL.Query().Get("family")),
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		list, err := svc.ListTests(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func DeleteTestHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CreateSectionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in content.CreateSectionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sec, err := svc.CreateSection(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sec)
	}
}

func CreateQuestionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in content.CreateQuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q, err := svc.CreateQuestion(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PUT /tests/{testID}/sections/{sectionID} attaches, DELETE detaches.
func AddSectionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.AddSection(r.Context(), chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func RemoveSectionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.RemoveSection(r.Context(), chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

type reorderReq struct {
	Order []string `json:"order"`
}

// POST /tests/{testID}/reorder with {"order": [...]} — the new order must
// be a permutation of the current section ids.
func ReorderSectionsHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t, err := svc.ReorderSections(r.Context(), chi.URLParam(r, "testID"), req.Order)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func AddQuestionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, err := svc.AddQuestion(r.Context(), chi.URLParam(r, "sectionID"), chi.URLParam(r, "questionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	}
}

func RemoveQuestionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, err := svc.RemoveQuestion(r.Context(), chi.URLParam(r, "sectionID"), chi.URLParam(r, "questionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	}
}

func ReorderQuestionsHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sec, err := svc.ReorderQuestions(r.Context(), chi.URLParam(r, "sectionID"), req.Order)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	}
}

func ValidateSectionHandler(svc *content.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ValidateSection(r.Context(), chi.URLParam(r, "sectionID")); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
