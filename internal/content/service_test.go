package content

import (
	"context"
	"testing"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/family"
)

func newTestService() *Service {
	return NewService(NewInMemoryStore())
}

// buildTest creates a test with n attached sections and returns the test
// and section ids in order.
func buildTest(t *testing.T, svc *Service, tag family.Tag, n int) (Test, []string) {
	t.Helper()
	ctx := context.Background()
	tst, err := svc.CreateTest(ctx, CreateTestInput{Title: "t", Family: tag, CreatedBy: "admin1"})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sec, err := svc.CreateSection(ctx, CreateSectionInput{Title: "s"})
		if err != nil {
			t.Fatalf("CreateSection: %v", err)
		}
		if tst, err = svc.AddSection(ctx, tst.ID, sec.ID); err != nil {
			t.Fatalf("AddSection: %v", err)
		}
		ids = append(ids, sec.ID)
	}
	return tst, ids
}

func TestReorderSectionsPermutation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, ids := buildTest(t, svc, family.IELTSReading, 3)
	a, b, c := ids[0], ids[1], ids[2]

	got, err := svc.ReorderSections(ctx, tst.ID, []string{c, a, b})
	if err != nil {
		t.Fatalf("ReorderSections: %v", err)
	}
	if got.SectionIDs[0] != c || got.SectionIDs[1] != a || got.SectionIDs[2] != b {
		t.Fatalf("order = %v, want [%s %s %s]", got.SectionIDs, c, a, b)
	}

	// Short, long, and foreign-id orders are all rejected and leave the
	// stored order untouched.
	bad := [][]string{
		{a, b},
		{a, b, c, "extra"},
		{a, b, "foreign"},
		{a, a, b},
	}
	for _, order := range bad {
		if _, err := svc.ReorderSections(ctx, tst.ID, order); !apperr.IsInvariant(err) {
			t.Errorf("ReorderSections(%v): got %v, want invariant error", order, err)
		}
	}
	cur, _ := svc.GetTest(ctx, tst.ID)
	if cur.SectionIDs[0] != c || cur.SectionIDs[1] != a || cur.SectionIDs[2] != b {
		t.Fatalf("failed reorder mutated state: %v", cur.SectionIDs)
	}
}

func TestSectionCountBounds(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Listening allows at most 4 sections.
	tst, _ := buildTest(t, svc, family.IELTSListening, 4)
	extra, _ := svc.CreateSection(ctx, CreateSectionInput{Title: "s5"})
	if _, err := svc.AddSection(ctx, tst.ID, extra.ID); !apperr.IsInvariant(err) {
		t.Fatalf("AddSection beyond max: got %v, want invariant error", err)
	}

	// A single-section test refuses to drop below the minimum.
	one, ids := buildTest(t, svc, family.IELTSListening, 1)
	if _, err := svc.RemoveSection(ctx, one.ID, ids[0]); !apperr.IsInvariant(err) {
		t.Fatalf("RemoveSection below min: got %v, want invariant error", err)
	}
}

func TestAddSectionDuplicateConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, ids := buildTest(t, svc, family.IELTSReading, 2)
	if _, err := svc.AddSection(ctx, tst.ID, ids[0]); !apperr.IsConflict(err) {
		t.Fatalf("duplicate AddSection: got %v, want conflict", err)
	}
}

func TestAddSectionOwnedElsewhereConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, ids := buildTest(t, svc, family.IELTSReading, 1)
	other, _ := buildTest(t, svc, family.IELTSReading, 1)
	if _, err := svc.AddSection(ctx, other.ID, ids[0]); !apperr.IsConflict(err) {
		t.Fatalf("attach owned section: got %v, want conflict", err)
	}
}

// staleSectionStore replays a read from before the section was claimed, the
// interleaving where two attachers both observe an unowned section.
type staleSectionStore struct {
	Store
}

func (s staleSectionStore) GetSection(ctx context.Context, id string) (Section, error) {
	sec, err := s.Store.GetSection(ctx, id)
	sec.TestID = ""
	return sec, err
}

func TestAddSectionStaleOwnershipRead(t *testing.T) {
	base := NewInMemoryStore()
	ctx := context.Background()

	svc := NewService(base)
	first, ids := buildTest(t, svc, family.IELTSReading, 1)
	second, err := svc.CreateTest(ctx, CreateTestInput{Title: "t2", Family: family.IELTSReading, CreatedBy: "admin1"})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	// The racing attacher sees the pre-claim state; the store-level claim
	// must still refuse, and refuse without touching either row.
	racer := NewService(staleSectionStore{base})
	if _, err := racer.AddSection(ctx, second.ID, ids[0]); !apperr.IsConflict(err) {
		t.Fatalf("stale attach: got %v, want conflict", err)
	}

	cur, err := base.GetTest(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if len(cur.SectionIDs) != 0 {
		t.Fatalf("losing test lists sections %v; section is shared across tests", cur.SectionIDs)
	}
	sec, err := base.GetSection(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.TestID != first.ID {
		t.Fatalf("section owner = %q, want %q", sec.TestID, first.ID)
	}
}

func TestRemoveSectionReleasesOwnership(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, ids := buildTest(t, svc, family.IELTSReading, 2)

	if _, err := svc.RemoveSection(ctx, tst.ID, ids[0]); err != nil {
		t.Fatalf("RemoveSection: %v", err)
	}
	sec, err := svc.store.GetSection(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.TestID != "" {
		t.Fatalf("detached section still owned by %q", sec.TestID)
	}
	// The section is free to join another test now.
	other, _ := buildTest(t, svc, family.IELTSReading, 1)
	if _, err := svc.AddSection(ctx, other.ID, ids[0]); err != nil {
		t.Fatalf("re-attach after detach: %v", err)
	}
}

func TestAddSectionUnknownSection(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, _ := buildTest(t, svc, family.IELTSReading, 1)
	if _, err := svc.AddSection(ctx, tst.ID, "nope"); !apperr.IsNotFound(err) {
		t.Fatalf("AddSection unknown: got %v, want not found", err)
	}
}

func TestQuestionOps(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, ids := buildTest(t, svc, family.PTEReading, 1)
	secID := ids[0]

	var qids []string
	for i := 0; i < 3; i++ {
		q, err := svc.CreateQuestion(ctx, CreateQuestionInput{Kind: "mcq_single", AnswerKey: []string{"a"}, Points: 1})
		if err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		if _, err := svc.AddQuestion(ctx, secID, q.ID); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		qids = append(qids, q.ID)
	}

	if _, err := svc.AddQuestion(ctx, secID, qids[0]); !apperr.IsConflict(err) {
		t.Fatalf("duplicate AddQuestion: got %v, want conflict", err)
	}

	rev := []string{qids[2], qids[1], qids[0]}
	sec, err := svc.ReorderQuestions(ctx, secID, rev)
	if err != nil {
		t.Fatalf("ReorderQuestions: %v", err)
	}
	for i := range rev {
		if sec.QuestionIDs[i] != rev[i] {
			t.Fatalf("order = %v, want %v", sec.QuestionIDs, rev)
		}
	}

	if _, err := svc.ReorderQuestions(ctx, secID, qids[:2]); !apperr.IsInvariant(err) {
		t.Fatalf("short reorder: got %v, want invariant", err)
	}

	if _, err := svc.RemoveQuestion(ctx, secID, qids[1]); err != nil {
		t.Fatalf("RemoveQuestion: %v", err)
	}
	if _, err := svc.RemoveQuestion(ctx, secID, qids[1]); !apperr.IsNotFound(err) {
		t.Fatalf("remove twice: got %v, want not found", err)
	}
}

func TestValidateSectionQuestionCount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sec, _ := svc.CreateSection(ctx, CreateSectionInput{Title: "s", QuestionCount: 2})

	if err := svc.ValidateSection(ctx, sec.ID); !apperr.IsInvariant(err) {
		t.Fatalf("empty section with count pin: got %v, want invariant", err)
	}
	for i := 0; i < 2; i++ {
		q, _ := svc.CreateQuestion(ctx, CreateQuestionInput{Kind: "mcq_single", Points: 1})
		if _, err := svc.AddQuestion(ctx, sec.ID, q.ID); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	if err := svc.ValidateSection(ctx, sec.ID); err != nil {
		t.Fatalf("ValidateSection: %v", err)
	}
}

func TestDeleteTestCascades(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, ids := buildTest(t, svc, family.IELTSReading, 2)
	q, _ := svc.CreateQuestion(ctx, CreateQuestionInput{Kind: "mcq_single", Points: 1})
	if _, err := svc.AddQuestion(ctx, ids[0], q.ID); err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}

	if err := svc.DeleteTest(ctx, tst.ID); err != nil {
		t.Fatalf("DeleteTest: %v", err)
	}
	if _, err := svc.GetTest(ctx, tst.ID); !apperr.IsNotFound(err) {
		t.Fatalf("test survived delete: %v", err)
	}
	if _, err := svc.store.GetSection(ctx, ids[0]); !apperr.IsNotFound(err) {
		t.Fatalf("section survived cascade: %v", err)
	}
	if _, err := svc.store.GetQuestion(ctx, q.ID); !apperr.IsNotFound(err) {
		t.Fatalf("question survived cascade: %v", err)
	}

	if err := svc.DeleteTest(ctx, tst.ID); !apperr.IsNotFound(err) {
		t.Fatalf("delete twice: got %v, want not found", err)
	}
}

func TestLoadWithChildrenOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tst, ids := buildTest(t, svc, family.IELTSReading, 3)

	if _, err := svc.ReorderSections(ctx, tst.ID, []string{ids[2], ids[0], ids[1]}); err != nil {
		t.Fatalf("ReorderSections: %v", err)
	}
	g, err := svc.LoadWithChildren(ctx, tst.ID)
	if err != nil {
		t.Fatalf("LoadWithChildren: %v", err)
	}
	want := []string{ids[2], ids[0], ids[1]}
	for i, sec := range g.Sections {
		if sec.ID != want[i] {
			t.Fatalf("sections order = %v at %d, want %v", sec.ID, i, want[i])
		}
	}
}
