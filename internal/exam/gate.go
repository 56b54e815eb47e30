package exam

import (
	"context"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
)

// Visible is the publication gate: a student sees an exam only when it is
// published and belongs to the student's institute.
func Visible(e Exam, p principal.Principal) bool {
	return p.IsStudent() && p.InstituteID != "" && e.InstituteID == p.InstituteID && e.Published
}

// ListExamsForStudent lists the published exams of the student's institute,
// newest first. A non-empty batchID keeps institute-wide exams and the ones
// scoped to that batch.
func (s *Service) ListExamsForStudent(ctx context.Context, p principal.Principal, batchID string) ([]Exam, error) {
	if err := requireStudent(p); err != nil {
		return nil, err
	}
	list, err := s.store.FindExams(ctx, ExamFilter{
		InstituteID:   p.InstituteID,
		PublishedOnly: true,
		BatchID:       batchID,
	})
	if err != nil {
		return nil, classify("list student exams", err)
	}
	out := list[:0]
	for _, e := range list {
		if Visible(e, p) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetExamForStudent returns the exam with its questions stripped of answers.
// Missing, unpublished and foreign exams all report ErrNotFound.
func (s *Service) GetExamForStudent(ctx context.Context, p principal.Principal, examID string) (StudentExamView, error) {
	if err := requireStudent(p); err != nil {
		return StudentExamView{}, err
	}
	e, err := s.visibleExam(ctx, p, examID)
	if err != nil {
		return StudentExamView{}, err
	}
	qs, err := s.store.FindQuestions(ctx, e.ID)
	if err != nil {
		return StudentExamView{}, classify("load questions", err)
	}
	view := StudentExamView{Exam: e, Questions: make([]StudentQuestion, 0, len(qs))}
	for _, q := range qs {
		view.Questions = append(view.Questions, q.ForStudent())
	}
	return view, nil
}

func (s *Service) visibleExam(ctx context.Context, p principal.Principal, examID string) (Exam, error) {
	e, err := s.store.GetExam(ctx, p.InstituteID, examID)
	if err != nil {
		return Exam{}, classify("resolve exam", err)
	}
	if !Visible(e, p) {
		return Exam{}, ErrNotFound
	}
	return e, nil
}
