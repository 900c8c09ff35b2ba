package content_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/content"
	"github.com/langprep/langprep/internal/db"
	"github.com/langprep/langprep/internal/family"
)

func openStore(t *testing.T) *content.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "content.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return content.NewSQLStore(dbh, "sqlite")
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tst := content.Test{
		ID: "t1", Title: "Academic Reading 1", Family: family.IELTSReading,
		CreatedBy: "admin1", SectionIDs: []string{"s1"}, CreatedAt: 1, UpdatedAt: 1,
	}
	if err := store.PutTest(ctx, tst); err != nil {
		t.Fatalf("PutTest: %v", err)
	}
	sec := content.Section{
		ID: "s1", TestID: "t1", Title: "Passage 1",
		QuestionIDs: []string{"q1"}, Media: []content.MediaRef{{Kind: "pdf", Key: "media/pdf/x"}},
		CreatedAt: 1, UpdatedAt: 1,
	}
	if err := store.PutSection(ctx, sec); err != nil {
		t.Fatalf("PutSection: %v", err)
	}
	q := content.Question{
		ID: "q1", SectionID: "s1", Kind: "mcq_single",
		Prompt: "Pick one", Choices: []string{"a", "b"}, AnswerKey: []string{"a"}, Points: 1, CreatedAt: 1,
	}
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatalf("PutQuestion: %v", err)
	}

	g, err := store.LoadWithChildren(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadWithChildren: %v", err)
	}
	if len(g.Sections) != 1 || g.Sections[0].ID != "s1" {
		t.Fatalf("sections = %+v", g.Sections)
	}
	if qs := g.Questions["s1"]; len(qs) != 1 || qs[0].AnswerKey[0] != "a" {
		t.Fatalf("questions = %+v", g.Questions)
	}
	if g.Sections[0].Media[0].Key != "media/pdf/x" {
		t.Fatalf("media lost: %+v", g.Sections[0].Media)
	}

	if _, err := store.GetTest(ctx, "missing"); !apperr.IsNotFound(err) {
		t.Fatalf("GetTest(missing): %v", err)
	}
}

func TestSQLStoreSwapIsConditional(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tst := content.Test{
		ID: "t1", Title: "x", Family: family.IELTSListening,
		CreatedBy: "admin1", SectionIDs: []string{"a", "b"}, CreatedAt: 1, UpdatedAt: 1,
	}
	if err := store.PutTest(ctx, tst); err != nil {
		t.Fatalf("PutTest: %v", err)
	}

	ok, err := store.SwapTestSections(ctx, "t1", []string{"a", "b"}, []string{"b", "a"})
	if err != nil || !ok {
		t.Fatalf("first swap: ok=%v err=%v", ok, err)
	}
	// A swap based on the stale order must miss.
	ok, err = store.SwapTestSections(ctx, "t1", []string{"a", "b"}, []string{"a", "b"})
	if err != nil {
		t.Fatalf("stale swap: %v", err)
	}
	if ok {
		t.Fatal("stale swap matched; compare-and-set is broken")
	}
	cur, err := store.GetTest(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if cur.SectionIDs[0] != "b" || cur.SectionIDs[1] != "a" {
		t.Fatalf("order = %v, want [b a]", cur.SectionIDs)
	}
}

func TestSQLStoreAttachClaimsAndDetachReleases(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.PutTest(ctx, content.Test{
		ID: "t1", Title: "x", Family: family.IELTSReading, CreatedBy: "admin1",
		SectionIDs: []string{}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutTest: %v", err)
	}
	if err := store.PutSection(ctx, content.Section{
		ID: "s1", Title: "x", QuestionIDs: []string{}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutSection: %v", err)
	}

	ok, err := store.AttachSection(ctx, "t1", []string{}, []string{"s1"}, "s1")
	if err != nil || !ok {
		t.Fatalf("attach: ok=%v err=%v", ok, err)
	}
	sec, err := store.GetSection(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.TestID != "t1" {
		t.Fatalf("owner = %q, want t1", sec.TestID)
	}

	ok, err = store.DetachSection(ctx, "t1", []string{"s1"}, []string{}, "s1")
	if err != nil || !ok {
		t.Fatalf("detach: ok=%v err=%v", ok, err)
	}
	sec, err = store.GetSection(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.TestID != "" {
		t.Fatalf("owner after detach = %q, want empty", sec.TestID)
	}
}

func TestSQLStoreAttachRollsBackOnClaimFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.PutTest(ctx, content.Test{
		ID: "t1", Title: "x", Family: family.IELTSReading, CreatedBy: "admin1",
		SectionIDs: []string{}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutTest: %v", err)
	}
	// The section already belongs to another test.
	if err := store.PutSection(ctx, content.Section{
		ID: "s1", TestID: "t9", Title: "x", QuestionIDs: []string{}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutSection: %v", err)
	}

	ok, err := store.AttachSection(ctx, "t1", []string{}, []string{"s1"}, "s1")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if ok {
		t.Fatal("attach claimed a section owned by another test")
	}
	// The failed claim must undo the list swap too: no partial mutation.
	cur, err := store.GetTest(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if len(cur.SectionIDs) != 0 {
		t.Fatalf("test lists sections %v after a failed attach", cur.SectionIDs)
	}
	sec, err := store.GetSection(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if sec.TestID != "t9" {
		t.Fatalf("owner = %q, want t9 untouched", sec.TestID)
	}
}

func TestSQLStoreAttachQuestionRollsBackOnClaimFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.PutSection(ctx, content.Section{
		ID: "sec1", Title: "x", QuestionIDs: []string{}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutSection: %v", err)
	}
	if err := store.PutQuestion(ctx, content.Question{
		ID: "q1", SectionID: "sec9", Kind: "mcq_single", Choices: []string{}, AnswerKey: []string{}, CreatedAt: 1,
	}); err != nil {
		t.Fatalf("PutQuestion: %v", err)
	}

	ok, err := store.AttachQuestion(ctx, "sec1", []string{}, []string{"q1"}, "q1")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if ok {
		t.Fatal("attach claimed a question owned by another section")
	}
	sec, err := store.GetSection(ctx, "sec1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if len(sec.QuestionIDs) != 0 {
		t.Fatalf("section lists questions %v after a failed attach", sec.QuestionIDs)
	}
}

func TestSQLStoreCascadeDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.PutTest(ctx, content.Test{
		ID: "t1", Title: "x", Family: family.PTEReading, CreatedBy: "admin1",
		SectionIDs: []string{"s1"}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutTest: %v", err)
	}
	if err := store.PutSection(ctx, content.Section{
		ID: "s1", TestID: "t1", Title: "x", QuestionIDs: []string{"q1"}, CreatedAt: 1, UpdatedAt: 1,
	}); err != nil {
		t.Fatalf("PutSection: %v", err)
	}
	if err := store.PutQuestion(ctx, content.Question{
		ID: "q1", SectionID: "s1", Kind: "mcq_single", Choices: []string{}, AnswerKey: []string{}, CreatedAt: 1,
	}); err != nil {
		t.Fatalf("PutQuestion: %v", err)
	}

	if err := store.DeleteTestCascade(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTestCascade: %v", err)
	}
	if _, err := store.GetTest(ctx, "t1"); !apperr.IsNotFound(err) {
		t.Fatalf("test survived: %v", err)
	}
	if _, err := store.GetSection(ctx, "s1"); !apperr.IsNotFound(err) {
		t.Fatalf("section survived: %v", err)
	}
	if _, err := store.GetQuestion(ctx, "q1"); !apperr.IsNotFound(err) {
		t.Fatalf("question survived: %v", err)
	}

	// Re-running the cascade is a no-op, not an error.
	if err := store.DeleteTestCascade(ctx, "t1"); err != nil {
		t.Fatalf("second cascade: %v", err)
	}
}

func TestSQLStoreListTests(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i, fam := range []family.Tag{family.IELTSReading, family.IELTSReading, family.PTEWriting} {
		if err := store.PutTest(ctx, content.Test{
			ID: string(rune('a' + i)), Title: "Test", Family: fam, CreatedBy: "admin1",
			SectionIDs: []string{}, CreatedAt: int64(i), UpdatedAt: int64(i),
		}); err != nil {
			t.Fatalf("PutTest: %v", err)
		}
	}

	all, err := store.ListTests(ctx, content.ListOpts{})
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	reading, err := store.ListTests(ctx, content.ListOpts{Family: string(family.IELTSReading)})
	if err != nil {
		t.Fatalf("ListTests(family): %v", err)
	}
	if len(reading) != 2 {
		t.Fatalf("reading len = %d, want 2", len(reading))
	}
}
