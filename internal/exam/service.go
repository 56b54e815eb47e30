package exam

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
	"github.com/mind-engage/mindengage-exams/internal/grading"
	"github.com/mind-engage/mindengage-exams/internal/metrics"
)

// Event types written to the EventSink.
const (
	EventExamCreated      = "ExamCreated"
	EventExamDeleted      = "ExamDeleted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventStudentPurged    = "StudentPurged"
)

// Service implements exam authoring, the publication gate and the attempt
// engine on top of a Store. It holds no mutable state of its own.
type Service struct {
	store  Store
	events EventSink
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithEvents(s EventSink) Option          { return func(svc *Service) { svc.events = s } }
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }
func WithIDs(gen func() string) Option      { return func(svc *Service) { svc.newID = gen } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: newUUID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func requireInstitute(p principal.Principal) error {
	if p.Validate() != nil || !p.IsInstitute() {
		return ErrForbidden
	}
	return nil
}

func requireStudent(p principal.Principal) error {
	if p.Validate() != nil || !p.IsStudent() {
		return ErrForbidden
	}
	return nil
}

// ---- authoring ----

func (s *Service) CreateExam(ctx context.Context, p principal.Principal, in NewExam) (Exam, error) {
	if err := requireInstitute(p); err != nil {
		return Exam{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := Check(in); err != nil {
		return Exam{}, err
	}
	now := s.now()
	e := Exam{
		ID:              s.newID(),
		InstituteID:     p.InstituteID,
		Title:           in.Title,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		Subject:         in.Subject,
		ScheduledAt:     in.ScheduledAt,
		BatchID:         in.BatchID,
		Published:       in.Published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertExam(ctx, e); err != nil {
		return Exam{}, classify("create exam", err)
	}
	s.record(ctx, EventExamCreated, e.ID, map[string]string{"institute_id": e.InstituteID})
	return e, nil
}

func (s *Service) ListExams(ctx context.Context, p principal.Principal) ([]Exam, error) {
	if err := requireInstitute(p); err != nil {
		return nil, err
	}
	list, err := s.store.FindExams(ctx, ExamFilter{InstituteID: p.InstituteID})
	return list, classify("list exams", err)
}

func (s *Service) GetExam(ctx context.Context, p principal.Principal, examID string) (ExamDetail, error) {
	if err := requireInstitute(p); err != nil {
		return ExamDetail{}, err
	}
	e, err := s.store.GetExam(ctx, p.InstituteID, examID)
	if err != nil {
		return ExamDetail{}, classify("get exam", err)
	}
	qs, err := s.store.FindQuestions(ctx, e.ID)
	if err != nil {
		return ExamDetail{}, classify("get exam questions", err)
	}
	return ExamDetail{Exam: e, Questions: qs}, nil
}

func (s *Service) UpdateExam(ctx context.Context, p principal.Principal, examID string, patch ExamPatch) (Exam, error) {
	if err := requireInstitute(p); err != nil {
		return Exam{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}
	if err := Check(patch); err != nil {
		return Exam{}, err
	}
	e, err := s.store.GetExam(ctx, p.InstituteID, examID)
	if err != nil {
		return Exam{}, classify("update exam", err)
	}
	patch.apply(&e)
	e.UpdatedAt = s.now()
	if err := s.store.UpdateExam(ctx, e); err != nil {
		return Exam{}, classify("update exam", err)
	}
	return e, nil
}

func (p ExamPatch) apply(e *Exam) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.DurationMinutes != nil {
		e.DurationMinutes = *p.DurationMinutes
	}
	if p.Subject != nil {
		e.Subject = emptyToNil(*p.Subject)
	}
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		e.ScheduledAt = &t
	}
	if p.BatchID != nil {
		e.BatchID = emptyToNil(*p.BatchID)
	}
	if p.Published != nil {
		e.Published = *p.Published
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DeleteExam removes the exam, then its questions, then its attempts. The steps
// are independent deletes; a later failure leaves earlier ones in place.
func (s *Service) DeleteExam(ctx context.Context, p principal.Principal, examID string) error {
	if err := requireInstitute(p); err != nil {
		return err
	}
	if err := s.store.DeleteExam(ctx, p.InstituteID, examID); err != nil {
		return classify("delete exam", err)
	}
	nq, err := s.store.DeleteQuestions(ctx, examID)
	if err != nil {
		return classify("delete exam questions", err)
	}
	na, err := s.store.DeleteAttempts(ctx, AttemptFilter{InstituteID: p.InstituteID, ExamID: examID})
	if err != nil {
		return classify("delete exam attempts", err)
	}
	s.record(ctx, EventExamDeleted, examID, map[string]interface{}{
		"institute_id": p.InstituteID,
		"questions":    nq,
		"attempts":     na,
	})
	return nil
}

// ownedExam resolves an exam the institute owns, or ErrNotFound.
func (s *Service) ownedExam(ctx context.Context, p principal.Principal, examID string) (Exam, error) {
	if err := requireInstitute(p); err != nil {
		return Exam{}, err
	}
	e, err := s.store.GetExam(ctx, p.InstituteID, examID)
	return e, classify("resolve exam", err)
}

func (s *Service) AddQuestion(ctx context.Context, p principal.Principal, examID string, in NewQuestion) (Question, error) {
	if err := requireInstitute(p); err != nil {
		return Question{}, err
	}
	if err := Check(in); err != nil {
		return Question{}, err
	}
	if err := checkCorrectIndex(*in.CorrectIndex, in.Options); err != nil {
		return Question{}, err
	}
	if _, err := s.ownedExam(ctx, p, examID); err != nil {
		return Question{}, err
	}
	q := Question{
		ID:           s.newID(),
		ExamID:       examID,
		Text:         in.Text,
		Options:      append([]string(nil), in.Options...),
		CorrectIndex: *in.CorrectIndex,
		CreatedAt:    s.now(),
	}
	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return Question{}, classify("add question", err)
	}
	return q, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, p principal.Principal, examID, questionID string, patch QuestionPatch) (Question, error) {
	if err := requireInstitute(p); err != nil {
		return Question{}, err
	}
	if err := Check(patch); err != nil {
		return Question{}, err
	}
	if _, err := s.ownedExam(ctx, p, examID); err != nil {
		return Question{}, err
	}
	q, err := s.store.GetQuestion(ctx, examID, questionID)
	if err != nil {
		return Question{}, classify("update question", err)
	}
	if patch.Text != nil {
		q.Text = *patch.Text
	}
	if patch.Options != nil {
		q.Options = append([]string(nil), patch.Options...)
	}
	if patch.CorrectIndex != nil {
		q.CorrectIndex = *patch.CorrectIndex
	}
	if patch.Options != nil || patch.CorrectIndex != nil {
		if err := checkCorrectIndex(q.CorrectIndex, q.Options); err != nil {
			return Question{}, err
		}
	}
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return Question{}, classify("update question", err)
	}
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, p principal.Principal, examID, questionID string) error {
	if _, err := s.ownedExam(ctx, p, examID); err != nil {
		return err
	}
	return classify("delete question", s.store.DeleteQuestion(ctx, examID, questionID))
}

// ---- attempts ----

// Submit grades the student's single attempt at an exam. An existing attempt
// is reported as ErrConflict, both from the pre-check and from the store's
// unique (exam, student) constraint when two submissions race.
func (s *Service) Submit(ctx context.Context, p principal.Principal, examID string, answers []Answer) (SubmitResult, error) {
	if err := requireStudent(p); err != nil {
		return SubmitResult{}, err
	}
	if err := Check(Submission{Answers: answers}); err != nil {
		return SubmitResult{}, err
	}
	e, err := s.visibleExam(ctx, p, examID)
	if err != nil {
		return SubmitResult{}, err
	}

	_, err = s.store.FindAttempt(ctx, p.InstituteID, e.ID, p.StudentID)
	switch {
	case err == nil:
		metrics.AttemptConflicts.Inc()
		return SubmitResult{}, ErrConflict
	case !isNotFound(err):
		return SubmitResult{}, classify("check attempt", err)
	}

	qs, err := s.store.FindQuestions(ctx, e.ID)
	if err != nil {
		return SubmitResult{}, classify("load questions", err)
	}
	res := grading.Grade(gradingQuestions(qs), gradingAnswers(answers))

	a := Attempt{
		ID:             s.newID(),
		ExamID:         e.ID,
		StudentID:      p.StudentID,
		InstituteID:    p.InstituteID,
		Answers:        append([]Answer(nil), answers...),
		TotalQuestions: res.Total,
		Correct:        res.Correct,
		Score:          res.Score,
		SubmittedAt:    s.now(),
	}
	if err := s.store.InsertAttempt(ctx, a); err != nil {
		if isConflict(err) {
			metrics.AttemptConflicts.Inc()
		}
		return SubmitResult{}, classify("save attempt", err)
	}

	metrics.AttemptsSubmitted.WithLabelValues(p.InstituteID).Inc()
	metrics.AttemptScore.Observe(float64(res.Score))
	s.record(ctx, EventAttemptSubmitted, a.ID, map[string]interface{}{
		"exam_id":      a.ExamID,
		"student_id":   a.StudentID,
		"institute_id": a.InstituteID,
		"score":        a.Score,
	})
	return SubmitResult{AttemptID: a.ID, Score: res.Score, Correct: res.Correct, Total: res.Total}, nil
}

// PurgeStudentAttempts removes every attempt a student has in the institute.
// Student management calls it when a student is deleted.
func (s *Service) PurgeStudentAttempts(ctx context.Context, p principal.Principal, studentID string) (int64, error) {
	if err := requireInstitute(p); err != nil {
		return 0, err
	}
	if strings.TrimSpace(studentID) == "" {
		return 0, NewValidationError(errInvalid, FieldError{Field: "student_id", Error: "student_id is a required field"})
	}
	n, err := s.store.DeleteAttempts(ctx, AttemptFilter{InstituteID: p.InstituteID, StudentID: studentID})
	if err != nil {
		return 0, classify("purge attempts", err)
	}
	s.record(ctx, EventStudentPurged, studentID, map[string]interface{}{
		"institute_id": p.InstituteID,
		"attempts":     n,
	})
	return n, nil
}

func gradingQuestions(qs []Question) []grading.Q {
	out := make([]grading.Q, len(qs))
	for i, q := range qs {
		out[i] = grading.Q{ID: q.ID, CorrectIndex: q.CorrectIndex}
	}
	return out
}

func gradingAnswers(as []Answer) []grading.Answer {
	out := make([]grading.Answer, 0, len(as))
	for _, a := range as {
		if a.ChosenIndex == nil {
			continue // no option picked is never a match
		}
		out = append(out, grading.Answer{QuestionID: a.QuestionID, ChosenIndex: *a.ChosenIndex})
	}
	return out
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func isConflict(err error) bool { return errors.Is(err, ErrConflict) }

// record appends an event; sink failures are logged and never fail the request.
func (s *Service) record(ctx context.Context, typ, key string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, key, data); err != nil {
		log.Printf("event %s %s: %v", typ, key, err)
	}
}
