package http

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/langprep/langprep/internal/storage"
)

// MountAssets serves section media (audio, images, answer-sheet PDFs). Only
// the opaque blob key travels through the content model.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// POST /assets?kind=audio — multipart upload, returns the blob key
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		switch kind {
		case "audio", "image", "pdf":
		default:
			http.Error(w, "kind must be audio, image, or pdf", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		key := "media/" + kind + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(hdr.Filename))
		if _, err := bs.Put(key, f); err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": key, "kind": kind})
	})

	// GET /assets/* -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(filepath.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
