package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/langprep/langprep/internal/family"
	"github.com/langprep/langprep/internal/stats"
	"github.com/langprep/langprep/internal/submission"
)

// statsFetchLimit caps how many submissions a dashboard query pulls per
// family. Aggregation happens in memory over this window.
const statsFetchLimit = 10000

// GET /stats?family=ielts_reading — omit family for the cross-family report.
func GetStatsHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fam := strings.TrimSpace(r.URL.Query().Get("family"))
		if fam != "" {
			if _, err := family.Parse(fam); err != nil {
				writeErr(w, err)
				return
			}
		}
		subs, err := svc.List(r.Context(), submission.ListOpts{Family: fam, Limit: statsFetchLimit})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats.Aggregate(subs))
	}
}

// POST /stats/distribution with {"family": "...", "buckets": [{"lo":0,"hi":20},...]}
func DistributionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Family  string         `json:"family"`
			Buckets []stats.Bucket `json:"buckets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.Buckets) == 0 {
			http.Error(w, "buckets required", http.StatusBadRequest)
			return
		}
		subs, err := svc.List(r.Context(), submission.ListOpts{
			Family: req.Family,
			Status: string(submission.StatusGraded),
			Limit:  statsFetchLimit,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"buckets": req.Buckets,
			"counts":  stats.Distribution(subs, req.Buckets),
		})
	}
}

// GET /stats/activity?limit=20 merges the per-family streams into one
// recency-ordered feed.
func RecentActivityHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
		if limit < 1 {
			limit = 20
		}
		streams := make([][]submission.Submission, 0, len(family.All()))
		for _, tag := range family.All() {
			subs, err := svc.List(r.Context(), submission.ListOpts{Family: string(tag), Limit: limit})
			if err != nil {
				writeErr(w, err)
				return
			}
			streams = append(streams, subs)
		}
		writeJSON(w, http.StatusOK, stats.RecentActivity(streams, limit))
	}
}
