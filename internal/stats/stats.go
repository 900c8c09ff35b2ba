// Package stats aggregates submissions for dashboards. Families score on
// different scales (percent, band, PTE points); aggregation averages within
// a family and combines families as an unweighted mean of means, never by
// pooling raw values across scales.
package stats

import (
	"sort"

	"github.com/langprep/langprep/internal/family"
	"github.com/langprep/langprep/internal/submission"
)

// Normalized pairs a score with the scale it lives on; values on different
// scales are not comparable.
type Normalized struct {
	Value float64      `json:"value"`
	Scale family.Scale `json:"scale"`
}

func Normalize(raw float64, tag family.Tag) Normalized {
	return Normalized{Value: raw, Scale: tag.Meta().Scale}
}

type Report struct {
	TotalSubmissions int     `json:"total_submissions"`
	PendingCount     int     `json:"pending_count"`
	GradedCount      int     `json:"graded_count"`
	AverageScore     float64 `json:"average_score"`
	// CompletionRate is the mean number of submissions per distinct
	// submitting user, kept for dashboard compatibility.
	CompletionRate float64 `json:"completion_rate"`
}

// Aggregate computes the dashboard report. AverageScore is the unweighted
// mean of per-family mean scores over graded submissions.
func Aggregate(subs []submission.Submission) Report {
	r := Report{TotalSubmissions: len(subs)}

	sums := map[family.Tag]float64{}
	counts := map[family.Tag]int{}
	users := map[string]struct{}{}
	for _, sub := range subs {
		users[sub.UserID] = struct{}{}
		switch sub.Status {
		case submission.StatusGraded:
			r.GradedCount++
			sums[sub.Family] += sub.Score
			counts[sub.Family]++
		default:
			r.PendingCount++
		}
	}

	if len(counts) > 0 {
		var total float64
		for tag, sum := range sums {
			total += sum / float64(counts[tag])
		}
		r.AverageScore = total / float64(len(counts))
	}
	if len(users) > 0 {
		r.CompletionRate = float64(len(subs)) / float64(len(users))
	}
	return r
}

// Bucket is a half-open score range (Lo, Hi]; the first bucket of a series
// is treated as closed at Lo so 0 lands somewhere.
type Bucket struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Distribution counts graded submissions' percentage-equivalent scores per
// bucket. Scores outside every bucket are dropped.
func Distribution(subs []submission.Submission, buckets []Bucket) []int {
	counts := make([]int, len(buckets))
	for _, sub := range subs {
		if sub.Status != submission.StatusGraded {
			continue
		}
		pct := family.PercentEquivalent(sub.Score, sub.Family)
		for i, b := range buckets {
			if pct > b.Lo && pct <= b.Hi {
				counts[i]++
				break
			}
			if i == 0 && pct == b.Lo {
				counts[i]++
				break
			}
		}
	}
	return counts
}

// RecentActivity merges submission streams from any number of families,
// orders by submission time descending with id as the tie-break, and
// truncates to limit. The tie-break keeps the output deterministic.
func RecentActivity(streams [][]submission.Submission, limit int) []submission.Submission {
	var merged []submission.Submission
	for _, s := range streams {
		merged = append(merged, s...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].SubmittedAt != merged[j].SubmittedAt {
			return merged[i].SubmittedAt > merged[j].SubmittedAt
		}
		return merged[i].ID < merged[j].ID
	})
	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}
	return merged
}
