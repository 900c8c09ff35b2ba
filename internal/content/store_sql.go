package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/family"
)

// SQLStore persists the hierarchy over database/sql. Child-id lists are
// stored as JSON text on the parent row; the compare-and-set swaps condition
// the UPDATE on the previously read JSON so a concurrent structural write
// makes the swap miss instead of silently interleaving.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	ids, err := json.Marshal(t.SectionIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,title,family,created_by,section_ids,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, section_ids=EXCLUDED.section_ids, updated_at=EXCLUDED.updated_at`,
		t.ID, t.Title, string(t.Family), t.CreatedBy, string(ids), t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,family,created_by,section_ids,created_at,updated_at FROM tests WHERE id=$1`, id)
	var t Test
	var fam, ids string
	if err := row.Scan(&t.ID, &t.Title, &fam, &t.CreatedBy, &ids, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, apperr.NotFoundf("test %s not found", id)
		}
		return Test{}, err
	}
	t.Family = family.Tag(fam)
	if err := json.Unmarshal([]byte(ids), &t.SectionIDs); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id,title,family,created_by,section_ids,created_at FROM tests`
	args := []any{}
	where := ""
	if opts.Family != "" {
		args = append(args, opts.Family)
		where = ` WHERE family=$1`
	}
	if opts.Q != "" {
		args = append(args, "%"+opts.Q+"%")
		if where == "" {
			where = ` WHERE title LIKE $1`
		} else {
			where += ` AND title LIKE $2`
		}
	}
	args = append(args, limit, opts.Offset)
	q += where + ` ORDER BY created_at DESC, id ASC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TestSummary{}
	for rows.Next() {
		var ts TestSummary
		var fam, ids string
		if err := rows.Scan(&ts.ID, &ts.Title, &fam, &ts.CreatedBy, &ids, &ts.CreatedAt); err != nil {
			return nil, err
		}
		ts.Family = family.Tag(fam)
		var sectionIDs []string
		if err := json.Unmarshal([]byte(ids), &sectionIDs); err == nil {
			ts.SectionCount = len(sectionIDs)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutSection(ctx context.Context, sec Section) error {
	ids, err := json.Marshal(sec.QuestionIDs)
	if err != nil {
		return err
	}
	media, err := json.Marshal(sec.Media)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sections (id,test_id,title,question_ids,question_count,media,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET test_id=EXCLUDED.test_id, title=EXCLUDED.title,
			question_ids=EXCLUDED.question_ids, question_count=EXCLUDED.question_count,
			media=EXCLUDED.media, updated_at=EXCLUDED.updated_at`,
		sec.ID, sec.TestID, sec.Title, string(ids), sec.QuestionCount, string(media), sec.CreatedAt, sec.UpdatedAt)
	return err
}

func (s *SQLStore) GetSection(ctx context.Context, id string) (Section, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,test_id,title,question_ids,question_count,media,created_at,updated_at FROM sections WHERE id=$1`, id)
	return scanSection(row)
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	key, err := json.Marshal(q.AnswerKey)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (id,section_id,kind,prompt,choices,answer_key,points,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET section_id=EXCLUDED.section_id, kind=EXCLUDED.kind, prompt=EXCLUDED.prompt,
			choices=EXCLUDED.choices, answer_key=EXCLUDED.answer_key, points=EXCLUDED.points`,
		q.ID, q.SectionID, q.Kind, q.Prompt, string(choices), string(key), q.Points, q.CreatedAt)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,section_id,kind,prompt,choices,answer_key,points,created_at FROM questions WHERE id=$1`, id)
	var q Question
	var choices, key string
	if err := row.Scan(&q.ID, &q.SectionID, &q.Kind, &q.Prompt, &choices, &key, &q.Points, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, apperr.NotFoundf("question %s not found", id)
		}
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(key), &q.AnswerKey); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) SwapTestSections(ctx context.Context, testID string, prev, next []string) (bool, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return false, err
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tests SET section_ids=$1, updated_at=$2 WHERE id=$3 AND section_ids=$4`,
		string(nextJSON), time.Now().Unix(), testID, string(prevJSON))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) SwapSectionQuestions(ctx context.Context, sectionID string, prev, next []string) (bool, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return false, err
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sections SET question_ids=$1, updated_at=$2 WHERE id=$3 AND question_ids=$4`,
		string(nextJSON), time.Now().Unix(), sectionID, string(prevJSON))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AttachSection swaps the test's section list and claims the section's
// back-reference in one transaction. The claim is conditional on the section
// being unowned, so two attachers racing on a stale read cannot both win:
// the loser's claim matches zero rows and the whole transaction rolls back,
// list swap included.
func (s *SQLStore) AttachSection(ctx context.Context, testID string, prev, next []string, sectionID string) (bool, error) {
	now := time.Now().Unix()
	return s.swapWithChild(ctx, prev, next,
		`UPDATE tests SET section_ids=$1, updated_at=$2 WHERE id=$3 AND section_ids=$4`,
		[]any{now, testID},
		`UPDATE sections SET test_id=$1, updated_at=$2 WHERE id=$3 AND test_id=''`,
		[]any{testID, now, sectionID}, true)
}

// DetachSection is the symmetric release. Zero rows on the release itself
// (section already unowned) does not fail the transaction.
func (s *SQLStore) DetachSection(ctx context.Context, testID string, prev, next []string, sectionID string) (bool, error) {
	now := time.Now().Unix()
	return s.swapWithChild(ctx, prev, next,
		`UPDATE tests SET section_ids=$1, updated_at=$2 WHERE id=$3 AND section_ids=$4`,
		[]any{now, testID},
		`UPDATE sections SET test_id='', updated_at=$1 WHERE id=$2 AND test_id=$3`,
		[]any{now, sectionID, testID}, false)
}

func (s *SQLStore) AttachQuestion(ctx context.Context, sectionID string, prev, next []string, questionID string) (bool, error) {
	return s.swapWithChild(ctx, prev, next,
		`UPDATE sections SET question_ids=$1, updated_at=$2 WHERE id=$3 AND question_ids=$4`,
		[]any{time.Now().Unix(), sectionID},
		`UPDATE questions SET section_id=$1 WHERE id=$2 AND section_id=''`,
		[]any{sectionID, questionID}, true)
}

func (s *SQLStore) DetachQuestion(ctx context.Context, sectionID string, prev, next []string, questionID string) (bool, error) {
	return s.swapWithChild(ctx, prev, next,
		`UPDATE sections SET question_ids=$1, updated_at=$2 WHERE id=$3 AND question_ids=$4`,
		[]any{time.Now().Unix(), sectionID},
		`UPDATE questions SET section_id='' WHERE id=$1 AND section_id=$2`,
		[]any{questionID, sectionID}, false)
}

// swapWithChild runs the parent list CAS and the child ownership update in
// one transaction. parentSQL's placeholders are (next, args...); childSQL's
// are childArgs as given. When requireChild is set a zero-row child update
// aborts the transaction, which undoes the list swap.
func (s *SQLStore) swapWithChild(ctx context.Context, prev, next []string, parentSQL string, parentArgs []any, childSQL string, childArgs []any, requireChild bool) (bool, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return false, err
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	args := append([]any{string(nextJSON)}, parentArgs...)
	args = append(args, string(prevJSON))
	res, err := tx.ExecContext(ctx, parentSQL, args...)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	res, err = tx.ExecContext(ctx, childSQL, childArgs...)
	if err != nil {
		return false, err
	}
	if requireChild {
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return false, err
		}
	}
	return true, tx.Commit()
}

func (s *SQLStore) DeleteTestCascade(ctx context.Context, testID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Deletes of already-removed children match zero rows, so a retried
	// cascade after a partial failure is harmless.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM questions WHERE section_id IN (SELECT id FROM sections WHERE test_id=$1)`, testID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE test_id=$1`, testID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, testID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) LoadWithChildren(ctx context.Context, testID string) (TestGraph, error) {
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return TestGraph{}, err
	}
	g := TestGraph{Test: t, Questions: map[string][]Question{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id,test_id,title,question_ids,question_count,media,created_at,updated_at FROM sections WHERE test_id=$1`, testID)
	if err != nil {
		return TestGraph{}, err
	}
	defer rows.Close()
	byID := map[string]Section{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return TestGraph{}, err
		}
		byID[sec.ID] = sec
	}
	if err := rows.Err(); err != nil {
		return TestGraph{}, err
	}

	qrows, err := s.db.QueryContext(ctx,
		`SELECT id,section_id,kind,prompt,choices,answer_key,points,created_at FROM questions
		 WHERE section_id IN (SELECT id FROM sections WHERE test_id=$1)`, testID)
	if err != nil {
		return TestGraph{}, err
	}
	defer qrows.Close()
	qByID := map[string]Question{}
	for qrows.Next() {
		var q Question
		var choices, key string
		if err := qrows.Scan(&q.ID, &q.SectionID, &q.Kind, &q.Prompt, &choices, &key, &q.Points, &q.CreatedAt); err != nil {
			return TestGraph{}, err
		}
		_ = json.Unmarshal([]byte(choices), &q.Choices)
		_ = json.Unmarshal([]byte(key), &q.AnswerKey)
		qByID[q.ID] = q
	}
	if err := qrows.Err(); err != nil {
		return TestGraph{}, err
	}

	// Assemble in the parent-declared order.
	for _, sid := range t.SectionIDs {
		sec, ok := byID[sid]
		if !ok {
			continue
		}
		g.Sections = append(g.Sections, sec)
		qs := make([]Question, 0, len(sec.QuestionIDs))
		for _, qid := range sec.QuestionIDs {
			if q, ok := qByID[qid]; ok {
				qs = append(qs, q)
			}
		}
		g.Questions[sid] = qs
	}
	return g, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (Section, error) {
	var sec Section
	var ids, media string
	if err := row.Scan(&sec.ID, &sec.TestID, &sec.Title, &ids, &sec.QuestionCount, &media, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Section{}, apperr.NotFoundf("section not found")
		}
		return Section{}, err
	}
	if err := json.Unmarshal([]byte(ids), &sec.QuestionIDs); err != nil {
		return Section{}, err
	}
	if err := json.Unmarshal([]byte(media), &sec.Media); err != nil {
		return Section{}, err
	}
	return sec, nil
}
