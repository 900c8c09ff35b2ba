// Package autoscore computes suggested scores for auto-scorable families
// (listening and reading). The suggestion is advisory: grading is always an
// explicit admin action on the submission.
package autoscore

import (
	"errors"

	"github.com/langprep/langprep/internal/content"
)

// Result is the outcome of scoring a single answer.
type Result struct {
	Points      float64
	MaxPoints   float64
	NeedsManual bool
}

// Strategy scores one answer against one question.
type Strategy interface {
	Score(q content.Question, value any) (Result, error)
}

type Engine struct {
	strategies map[string]Strategy
}

type Option func(*config)

type config struct {
	MaxEditDistance int  // fuzzy tolerance for gap_fill
	AllowPartial    bool // partial credit for mcq_multi without false positives
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialCredit(b bool) Option  { return func(c *config) { c.AllowPartial = b } }

func NewEngine(opts ...Option) *Engine {
	cfg := &config{MaxEditDistance: 1, AllowPartial: true}
	for _, o := range opts {
		o(cfg)
	}
	return &Engine{
		strategies: map[string]Strategy{
			"mcq_single": mcqSingleStrategy{},
			"true_false": mcqSingleStrategy{},
			"mcq_multi":  mcqMultiStrategy{allowPartial: cfg.AllowPartial},
			"gap_fill":   gapFillStrategy{maxEdit: cfg.MaxEditDistance},
			"essay":      manualStrategy{},
			"speaking":   manualStrategy{},
		},
	}
}

// ScoreAnswer scores one answer. Unknown question kinds fall through to
// manual review.
func (e *Engine) ScoreAnswer(q content.Question, value any) (Result, error) {
	s, ok := e.strategies[q.Kind]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true}, nil
	}
	return s.Score(q, value)
}

// SuggestPercent scores every answered question in the graph and returns
// the earned share of total points as a percentage, plus whether any
// question still needs manual review. Unanswered questions score zero.
func (e *Engine) SuggestPercent(g content.TestGraph, answers map[string]any) (float64, bool) {
	var earned, total float64
	needsManual := false
	for _, qs := range g.Questions {
		for _, q := range qs {
			total += q.Points
			v, ok := answers[q.ID]
			if !ok {
				continue
			}
			res, err := e.ScoreAnswer(q, v)
			if err != nil {
				needsManual = true
				continue
			}
			earned += res.Points
			if res.NeedsManual {
				needsManual = true
			}
		}
	}
	if total == 0 {
		return 0, needsManual
	}
	return earned / total * 100, needsManual
}

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Score(q content.Question, value any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	s, ok := value.(string)
	if !ok {
		return res, errors.New("answer must be a string")
	}
	for _, k := range q.AnswerKey {
		if s == k {
			res.Points = q.Points
			break
		}
	}
	return res, nil
}

type mcqMultiStrategy struct{ allowPartial bool }

func (s mcqMultiStrategy) Score(q content.Question, value any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	sel, ok := toStringSlice(value)
	if !ok {
		return res, errors.New("answer must be a string list")
	}
	correct := toSet(q.AnswerKey)
	given := toSet(sel)
	if setEqual(correct, given) {
		res.Points = q.Points
		return res, nil
	}
	for g := range given {
		if _, ok := correct[g]; !ok {
			return res, nil // false positive: no credit
		}
	}
	if s.allowPartial && len(correct) > 0 {
		hits := 0
		for g := range given {
			if _, ok := correct[g]; ok {
				hits++
			}
		}
		res.Points = q.Points * float64(hits) / float64(len(correct))
	}
	return res, nil
}

type gapFillStrategy struct{ maxEdit int }

func (s gapFillStrategy) Score(q content.Question, value any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	raw, ok := value.(string)
	if !ok {
		return res, errors.New("answer must be a string")
	}
	given := normalize(raw)
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == given {
			res.Points = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, given) <= s.maxEdit {
			res.Points = q.Points
			return res, nil
		}
	}
	return res, nil
}

type manualStrategy struct{}

func (manualStrategy) Score(q content.Question, _ any) (Result, error) {
	return Result{MaxPoints: q.Points, NeedsManual: true}, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
