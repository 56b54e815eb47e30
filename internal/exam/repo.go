package exam

import "context"

// ExamFilter selects exams. InstituteID is mandatory; stores reject an empty one.
type ExamFilter struct {
	InstituteID   string
	PublishedOnly bool
	// BatchID, when set, keeps institute-wide exams and exams scoped to this batch.
	BatchID string
}

// AttemptFilter selects attempts. InstituteID is mandatory.
type AttemptFilter struct {
	InstituteID string
	ExamID      string
	StudentID   string
}

// Store is the persistence collaborator: per-collection CRUD, filtered lists
// and delete-many. No method spans collections and no transactions are assumed.
type Store interface {
	InsertExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, instituteID, id string) (Exam, error)
	FindExams(ctx context.Context, f ExamFilter) ([]Exam, error) // newest first
	UpdateExam(ctx context.Context, e Exam) error
	DeleteExam(ctx context.Context, instituteID, id string) error

	InsertQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, examID, id string) (Question, error)
	FindQuestions(ctx context.Context, examID string) ([]Question, error) // creation order
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, examID, id string) error
	DeleteQuestions(ctx context.Context, examID string) (int64, error)

	// InsertAttempt returns ErrConflict when (exam, student) already has one.
	InsertAttempt(ctx context.Context, a Attempt) error
	FindAttempt(ctx context.Context, instituteID, examID, studentID string) (Attempt, error)
	FindAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) // newest first
	DeleteAttempts(ctx context.Context, f AttemptFilter) (int64, error)
}

// EventSink receives domain events for downstream sync. It may be nil.
type EventSink interface {
	Record(ctx context.Context, typ, key string, data interface{}) error
}
