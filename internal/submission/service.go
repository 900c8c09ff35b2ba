package submission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/autoscore"
	"github.com/langprep/langprep/internal/content"
	"github.com/langprep/langprep/internal/family"
)

// TestSource resolves a test with its sections and questions. Satisfied by
// content.Service and content.Store.
type TestSource interface {
	LoadWithChildren(ctx context.Context, testID string) (content.TestGraph, error)
}

// Recorder receives audit events for submit and grade. Optional.
type Recorder interface {
	Record(ctx context.Context, typ, key string, data any)
}

// Service drives the submission lifecycle: pending on submit, graded
// exactly once, terminal thereafter.
type Service struct {
	store  Store
	tests  TestSource
	scorer *autoscore.Engine
	audit  Recorder
	// singlePerUser enforces at most one submission per user per test.
	// Off by default; the product default is multiple attempts allowed.
	singlePerUser bool
	now           func() time.Time
}

type Option func(*Service)

func WithSinglePolicy(on bool) Option       { return func(s *Service) { s.singlePerUser = on } }
func WithRecorder(r Recorder) Option        { return func(s *Service) { s.audit = r } }
func WithScorer(e *autoscore.Engine) Option { return func(s *Service) { s.scorer = e } }

func NewService(store Store, tests TestSource, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tests:  tests,
		scorer: autoscore.NewEngine(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates the answers against the test's question set and creates
// a pending submission. Every answer must reference a question owned by one
// of the test's sections.
func (s *Service) Submit(ctx context.Context, userID, testID string, answers []Answer) (Submission, error) {
	graph, err := s.tests.LoadWithChildren(ctx, testID)
	if err != nil {
		return Submission{}, err
	}

	known := graph.QuestionIDSet()
	seen := make(map[string]struct{}, len(answers))
	values := make(map[string]any, len(answers))
	for _, a := range answers {
		if a.QuestionID == "" {
			return Submission{}, apperr.Validationf("answer is missing a question id")
		}
		if _, dup := seen[a.QuestionID]; dup {
			return Submission{}, apperr.Validationf("duplicate answer for question %s", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
		if _, ok := known[a.QuestionID]; !ok {
			return Submission{}, apperr.NotFoundf("question %s does not belong to test %s", a.QuestionID, testID)
		}
		values[a.QuestionID] = a.Value
	}

	if s.singlePerUser {
		n, err := s.store.CountForUserTest(ctx, userID, testID)
		if err != nil {
			return Submission{}, err
		}
		if n > 0 {
			return Submission{}, apperr.Conflictf("user %s already submitted test %s", userID, testID)
		}
	}

	sub := Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		TestID:      testID,
		Family:      graph.Test.Family,
		Answers:     answers,
		Status:      StatusPending,
		SubmittedAt: s.now().Unix(),
	}
	if graph.Test.Family.Meta().AutoScored {
		pct, manual := s.scorer.SuggestPercent(graph, values)
		sub.SuggestedScore = &pct
		sub.NeedsManual = manual
	}
	if err := s.store.Put(ctx, sub); err != nil {
		return Submission{}, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, "SubmissionCreated", sub.ID, map[string]any{
			"user_id": userID, "test_id": testID, "family": graph.Test.Family,
		})
	}
	return sub, nil
}

// Grade transitions a pending submission to graded. The score is validated
// against the family's scale; band scores inside the range are rounded to
// the nearest half step. The store-level update is conditional on the
// pending status, so a concurrent second grader observes a conflict rather
// than overwriting.
func (s *Service) Grade(ctx context.Context, submissionID, graderID string, score float64, feedback string) (Submission, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusGraded {
		return Submission{}, apperr.Conflictf("submission %s already graded", submissionID)
	}
	normalized, err := family.NormalizeScore(score, sub.Family)
	if err != nil {
		return Submission{}, err
	}
	gradedAt := s.now().Unix()
	ok, err := s.store.Grade(ctx, submissionID, normalized, feedback, graderID, gradedAt)
	if err != nil {
		return Submission{}, err
	}
	if !ok {
		// lost the race to another grader
		return Submission{}, apperr.Conflictf("submission %s already graded", submissionID)
	}
	if s.audit != nil {
		s.audit.Record(ctx, "SubmissionGraded", submissionID, map[string]any{
			"graded_by": graderID, "score": normalized,
		})
	}
	return s.store.Get(ctx, submissionID)
}

func (s *Service) Get(ctx context.Context, id string) (Submission, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, opts ListOpts) ([]Submission, error) {
	return s.store.List(ctx, opts)
}
