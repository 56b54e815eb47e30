package exam

import "time"

type Exam struct {
	ID              string     `json:"id" bson:"_id"`
	InstituteID     string     `json:"institute_id" bson:"institute_id"`
	Title           string     `json:"title" bson:"title"`
	Description     string     `json:"description" bson:"description"`
	DurationMinutes int        `json:"duration_minutes" bson:"duration_minutes"`
	Subject         *string    `json:"subject,omitempty" bson:"subject"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" bson:"scheduled_at"`
	BatchID         *string    `json:"batch_id,omitempty" bson:"batch_id"` // nil = institute-wide
	Published       bool       `json:"published" bson:"published"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// Question has no tenant field of its own; it is reachable only through its exam.
type Question struct {
	ID           string    `json:"id" bson:"_id"`
	ExamID       string    `json:"exam_id" bson:"exam_id"`
	Text         string    `json:"text" bson:"text"`
	Options      []string  `json:"options" bson:"options"`
	CorrectIndex int       `json:"correct_index" bson:"correct_index"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// StudentQuestion is what a student is served. It has no answer field at all.
type StudentQuestion struct {
	ID      string   `json:"id"`
	ExamID  string   `json:"exam_id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type Answer struct {
	QuestionID  string `json:"question_id" bson:"question_id" validate:"required"`
	ChosenIndex *int   `json:"chosen_index" bson:"chosen_index" validate:"required,min=0"`
}

// Attempt is written once on submission and never updated.
type Attempt struct {
	ID             string    `json:"id" bson:"_id"`
	ExamID         string    `json:"exam_id" bson:"exam_id"`
	StudentID      string    `json:"student_id" bson:"student_id"`
	InstituteID    string    `json:"institute_id" bson:"institute_id"`
	Answers        []Answer  `json:"answers" bson:"answers"`
	TotalQuestions int       `json:"total_questions" bson:"total_questions"`
	Correct        int       `json:"correct" bson:"correct"`
	Score          int       `json:"score" bson:"score"`
	SubmittedAt    time.Time `json:"submitted_at" bson:"submitted_at"`
}

// ExamDetail is the owner's view: every question with its correct index.
type ExamDetail struct {
	Exam
	Questions []Question `json:"questions"`
}

type StudentExamView struct {
	Exam
	Questions []StudentQuestion `json:"questions"`
}

type SubmitResult struct {
	AttemptID string `json:"attempt_id"`
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
}

func (q Question) ForStudent() StudentQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return StudentQuestion{ID: q.ID, ExamID: q.ExamID, Text: q.Text, Options: opts}
}
