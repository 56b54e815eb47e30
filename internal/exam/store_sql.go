package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLStore persists exams, questions and attempts in sqlite or postgres.
// Queries are written with ? and rebound for the driver in use.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type examRow struct {
	ID              string         `db:"id"`
	InstituteID     string         `db:"institute_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	DurationMinutes int            `db:"duration_minutes"`
	Subject         sql.NullString `db:"subject"`
	ScheduledAt     sql.NullInt64  `db:"scheduled_at"`
	BatchID         sql.NullString `db:"batch_id"`
	Published       bool           `db:"published"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
}

type questionRow struct {
	ID           string `db:"id"`
	ExamID       string `db:"exam_id"`
	Text         string `db:"text"`
	OptionsJSON  string `db:"options_json"`
	CorrectIndex int    `db:"correct_index"`
	CreatedAt    int64  `db:"created_at"`
}

type attemptRow struct {
	ID             string `db:"id"`
	ExamID         string `db:"exam_id"`
	StudentID      string `db:"student_id"`
	InstituteID    string `db:"institute_id"`
	AnswersJSON    string `db:"answers_json"`
	TotalQuestions int    `db:"total_questions"`
	Correct        int    `db:"correct"`
	Score          int    `db:"score"`
	SubmittedAt    int64  `db:"submitted_at"`
}

const (
	examCols     = `id, institute_id, title, description, duration_minutes, subject, scheduled_at, batch_id, published, created_at, updated_at`
	questionCols = `id, exam_id, text, options_json, correct_index, created_at`
	attemptCols  = `id, exam_id, student_id, institute_id, answers_json, total_questions, correct, score, submitted_at`
)

func (s *SQLStore) InsertExam(ctx context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO exams (`+examCols+`)
		VALUES (:id, :institute_id, :title, :description, :duration_minutes, :subject, :scheduled_at, :batch_id, :published, :created_at, :updated_at)`,
		toExamRow(e))
	return errors.Wrap(err, "insert exam")
}

func (s *SQLStore) GetExam(ctx context.Context, instituteID, id string) (Exam, error) {
	if instituteID == "" {
		return Exam{}, ErrMissingTenant
	}
	var row examRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT `+examCols+` FROM exams WHERE id = ? AND institute_id = ?`), id, instituteID)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, errors.Wrap(err, "get exam")
	}
	return row.toExam(), nil
}

func (s *SQLStore) FindExams(ctx context.Context, f ExamFilter) ([]Exam, error) {
	if f.InstituteID == "" {
		return nil, ErrMissingTenant
	}
	q := `SELECT ` + examCols + ` FROM exams WHERE institute_id = ?`
	args := []interface{}{f.InstituteID}
	if f.PublishedOnly {
		q += ` AND published = ?`
		args = append(args, true)
	}
	if f.BatchID != "" {
		q += ` AND (batch_id IS NULL OR batch_id = ?)`
		args = append(args, f.BatchID)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	var rows []examRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "find exams")
	}
	out := make([]Exam, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toExam())
	}
	return out, nil
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE exams SET
		title = :title, description = :description, duration_minutes = :duration_minutes,
		subject = :subject, scheduled_at = :scheduled_at, batch_id = :batch_id,
		published = :published, updated_at = :updated_at
		WHERE id = :id AND institute_id = :institute_id`, toExamRow(e))
	if err != nil {
		return errors.Wrap(err, "update exam")
	}
	return requireAffected(res)
}

func (s *SQLStore) DeleteExam(ctx context.Context, instituteID, id string) error {
	if instituteID == "" {
		return ErrMissingTenant
	}
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM exams WHERE id = ? AND institute_id = ?`), id, instituteID)
	if err != nil {
		return errors.Wrap(err, "delete exam")
	}
	return requireAffected(res)
}

func (s *SQLStore) InsertQuestion(ctx context.Context, q Question) error {
	row, err := toQuestionRow(q)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO questions (`+questionCols+`)
		VALUES (:id, :exam_id, :text, :options_json, :correct_index, :created_at)`, row)
	return errors.Wrap(err, "insert question")
}

func (s *SQLStore) GetQuestion(ctx context.Context, examID, id string) (Question, error) {
	var row questionRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT `+questionCols+` FROM questions WHERE id = ? AND exam_id = ?`), id, examID)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, errors.Wrap(err, "get question")
	}
	return row.toQuestion()
}

func (s *SQLStore) FindQuestions(ctx context.Context, examID string) ([]Question, error) {
	var rows []questionRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT `+questionCols+` FROM questions WHERE exam_id = ? ORDER BY created_at ASC, id ASC`), examID)
	if err != nil {
		return nil, errors.Wrap(err, "find questions")
	}
	out := make([]Question, 0, len(rows))
	for _, r := range rows {
		q, err := r.toQuestion()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	row, err := toQuestionRow(q)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE questions SET
		text = :text, options_json = :options_json, correct_index = :correct_index
		WHERE id = :id AND exam_id = :exam_id`, row)
	if err != nil {
		return errors.Wrap(err, "update question")
	}
	return requireAffected(res)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, examID, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM questions WHERE id = ? AND exam_id = ?`), id, examID)
	if err != nil {
		return errors.Wrap(err, "delete question")
	}
	return requireAffected(res)
}

func (s *SQLStore) DeleteQuestions(ctx context.Context, examID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM questions WHERE exam_id = ?`), examID)
	if err != nil {
		return 0, errors.Wrap(err, "delete questions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLStore) InsertAttempt(ctx context.Context, a Attempt) error {
	if a.InstituteID == "" {
		return ErrMissingTenant
	}
	row, err := toAttemptRow(a)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
		VALUES (:id, :exam_id, :student_id, :institute_id, :answers_json, :total_questions, :correct, :score, :submitted_at)`, row)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return errors.Wrap(err, "insert attempt")
}

func (s *SQLStore) FindAttempt(ctx context.Context, instituteID, examID, studentID string) (Attempt, error) {
	if instituteID == "" {
		return Attempt{}, ErrMissingTenant
	}
	var row attemptRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT `+attemptCols+` FROM attempts WHERE institute_id = ? AND exam_id = ? AND student_id = ?`),
		instituteID, examID, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, errors.Wrap(err, "find attempt")
	}
	return row.toAttempt()
}

func (s *SQLStore) FindAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	where, args, err := attemptWhere(f)
	if err != nil {
		return nil, err
	}
	var rows []attemptRow
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE ` + where + ` ORDER BY submitted_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "find attempts")
	}
	out := make([]Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *SQLStore) DeleteAttempts(ctx context.Context, f AttemptFilter) (int64, error) {
	where, args, err := attemptWhere(f)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM attempts WHERE `+where), args...)
	if err != nil {
		return 0, errors.Wrap(err, "delete attempts")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func attemptWhere(f AttemptFilter) (string, []interface{}, error) {
	if f.InstituteID == "" {
		return "", nil, ErrMissingTenant
	}
	conds := []string{"institute_id = ?"}
	args := []interface{}{f.InstituteID}
	if f.ExamID != "" {
		conds = append(conds, "exam_id = ?")
		args = append(args, f.ExamID)
	}
	if f.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, f.StudentID)
	}
	return strings.Join(conds, " AND "), args, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// ---- row mapping ----

func toExamRow(e Exam) examRow {
	r := examRow{
		ID:              e.ID,
		InstituteID:     e.InstituteID,
		Title:           e.Title,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		Published:       e.Published,
		CreatedAt:       e.CreatedAt.UnixMilli(),
		UpdatedAt:       e.UpdatedAt.UnixMilli(),
	}
	if e.Subject != nil {
		r.Subject = sql.NullString{String: *e.Subject, Valid: true}
	}
	if e.ScheduledAt != nil {
		r.ScheduledAt = sql.NullInt64{Int64: e.ScheduledAt.UnixMilli(), Valid: true}
	}
	if e.BatchID != nil {
		r.BatchID = sql.NullString{String: *e.BatchID, Valid: true}
	}
	return r
}

func (r examRow) toExam() Exam {
	e := Exam{
		ID:              r.ID,
		InstituteID:     r.InstituteID,
		Title:           r.Title,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		Published:       r.Published,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.Subject.Valid {
		s := r.Subject.String
		e.Subject = &s
	}
	if r.ScheduledAt.Valid {
		t := time.UnixMilli(r.ScheduledAt.Int64).UTC()
		e.ScheduledAt = &t
	}
	if r.BatchID.Valid {
		b := r.BatchID.String
		e.BatchID = &b
	}
	return e
}

func toQuestionRow(q Question) (questionRow, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return questionRow{}, errors.Wrap(err, "encode options")
	}
	return questionRow{
		ID:           q.ID,
		ExamID:       q.ExamID,
		Text:         q.Text,
		OptionsJSON:  string(opts),
		CorrectIndex: q.CorrectIndex,
		CreatedAt:    q.CreatedAt.UnixMilli(),
	}, nil
}

func (r questionRow) toQuestion() (Question, error) {
	q := Question{
		ID:           r.ID,
		ExamID:       r.ExamID,
		Text:         r.Text,
		CorrectIndex: r.CorrectIndex,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.OptionsJSON), &q.Options); err != nil {
		return Question{}, errors.Wrapf(err, "decode options of question %s", r.ID)
	}
	return q, nil
}

func toAttemptRow(a Attempt) (attemptRow, error) {
	answers := a.Answers
	if answers == nil {
		answers = []Answer{}
	}
	buf, err := json.Marshal(answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "encode answers")
	}
	return attemptRow{
		ID:             a.ID,
		ExamID:         a.ExamID,
		StudentID:      a.StudentID,
		InstituteID:    a.InstituteID,
		AnswersJSON:    string(buf),
		TotalQuestions: a.TotalQuestions,
		Correct:        a.Correct,
		Score:          a.Score,
		SubmittedAt:    a.SubmittedAt.UnixMilli(),
	}, nil
}

func (r attemptRow) toAttempt() (Attempt, error) {
	a := Attempt{
		ID:             r.ID,
		ExamID:         r.ExamID,
		StudentID:      r.StudentID,
		InstituteID:    r.InstituteID,
		TotalQuestions: r.TotalQuestions,
		Correct:        r.Correct,
		Score:          r.Score,
		SubmittedAt:    time.UnixMilli(r.SubmittedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.AnswersJSON), &a.Answers); err != nil {
		return Attempt{}, errors.Wrapf(err, "decode answers of attempt %s", r.ID)
	}
	return a, nil
}
