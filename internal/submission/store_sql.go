package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/family"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Put(ctx context.Context, sub Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	var suggested sql.NullFloat64
	if sub.SuggestedScore != nil {
		suggested = sql.NullFloat64{Float64: *sub.SuggestedScore, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions
		(id,user_id,test_id,family,answers,status,score,suggested_score,needs_manual,feedback,graded_by,graded_at,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sub.ID, sub.UserID, sub.TestID, string(sub.Family), string(answers), string(sub.Status),
		sub.Score, suggested, sub.NeedsManual, sub.Feedback, sub.GradedBy, sub.GradedAt, sub.SubmittedAt)
	return err
}

const submissionCols = `id,user_id,test_id,family,answers,status,score,suggested_score,needs_manual,feedback,graded_by,graded_at,submitted_at`

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, apperr.NotFoundf("submission %s not found", id)
	}
	return sub, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Submission, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + submissionCols + ` FROM submissions`
	var conds []string
	var args []any
	add := func(cond, val string) {
		args = append(args, val)
		conds = append(conds, cond+"=$"+strconv.Itoa(len(args)))
	}
	if opts.TestID != "" {
		add("test_id", opts.TestID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.Family != "" {
		add("family", opts.Family)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	args = append(args, limit, opts.Offset)
	q += ` ORDER BY submitted_at DESC, id ASC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountForUserTest(ctx context.Context, userID, testID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id=$1 AND test_id=$2`, userID, testID).Scan(&n)
	return n, err
}

// Grade is the exactly-once transition: the UPDATE matches only while the
// row is still pending, so the check and the write are one statement.
func (s *SQLStore) Grade(ctx context.Context, id string, score float64, feedback, gradedBy string, gradedAt int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status=$1, score=$2, feedback=$3, graded_by=$4, graded_at=$5
		 WHERE id=$6 AND status=$7`,
		string(StatusGraded), score, feedback, gradedBy, gradedAt, id, string(StatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var fam, answers, status string
	var suggested sql.NullFloat64
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.TestID, &fam, &answers, &status,
		&sub.Score, &suggested, &sub.NeedsManual, &sub.Feedback, &sub.GradedBy, &sub.GradedAt, &sub.SubmittedAt); err != nil {
		return Submission{}, err
	}
	sub.Family = family.Tag(fam)
	sub.Status = Status(status)
	if suggested.Valid {
		v := suggested.Float64
		sub.SuggestedScore = &v
	}
	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return Submission{}, err
	}
	return sub, nil
}
