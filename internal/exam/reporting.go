package exam

import (
	"context"
	"math"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
	"github.com/mind-engage/mindengage-exams/internal/grading"
)

// Result is an attempt projected for reporting.
type Result struct {
	AttemptID   string    `json:"attempt_id"`
	ExamID      string    `json:"exam_id"`
	StudentID   string    `json:"student_id"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
	grading.Band
}

type Analytics struct {
	ExamID   string         `json:"exam_id"`
	Attempts int            `json:"attempts"`
	Average  float64        `json:"average"`
	Highest  int            `json:"highest"`
	Lowest   int            `json:"lowest"`
	Passed   int            `json:"passed"`
	PassRate float64        `json:"pass_rate"`
	Grades   map[string]int `json:"grades"`
}

func toResult(a Attempt) Result {
	return Result{
		AttemptID:   a.ID,
		ExamID:      a.ExamID,
		StudentID:   a.StudentID,
		Correct:     a.Correct,
		Total:       a.TotalQuestions,
		SubmittedAt: a.SubmittedAt,
		Band:        grading.Report(a.Score),
	}
}

// ListResults returns every attempt at an exam the institute owns.
func (s *Service) ListResults(ctx context.Context, p principal.Principal, examID string) ([]Result, error) {
	e, err := s.ownedExam(ctx, p, examID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.FindAttempts(ctx, AttemptFilter{InstituteID: p.InstituteID, ExamID: e.ID})
	if err != nil {
		return nil, classify("list results", err)
	}
	out := make([]Result, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toResult(a))
	}
	return out, nil
}

// ListMyResults returns the calling student's own attempts, newest first.
func (s *Service) ListMyResults(ctx context.Context, p principal.Principal) ([]Result, error) {
	if err := requireStudent(p); err != nil {
		return nil, err
	}
	attempts, err := s.store.FindAttempts(ctx, AttemptFilter{InstituteID: p.InstituteID, StudentID: p.StudentID})
	if err != nil {
		return nil, classify("list my results", err)
	}
	out := make([]Result, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toResult(a))
	}
	return out, nil
}

func (s *Service) ExamAnalytics(ctx context.Context, p principal.Principal, examID string) (Analytics, error) {
	results, err := s.ListResults(ctx, p, examID)
	if err != nil {
		return Analytics{}, err
	}
	return Summarize(examID, results), nil
}

// Summarize aggregates results. Average and pass rate are rounded to two places.
func Summarize(examID string, results []Result) Analytics {
	an := Analytics{ExamID: examID, Attempts: len(results), Grades: map[string]int{}}
	if len(results) == 0 {
		return an
	}
	sum := 0
	an.Lowest = results[0].Score
	for _, r := range results {
		sum += r.Score
		an.Highest = max(an.Highest, r.Score)
		an.Lowest = min(an.Lowest, r.Score)
		if r.Status == grading.Pass {
			an.Passed++
		}
		an.Grades[r.Grade]++
	}
	an.Average = round2(float64(sum) / float64(len(results)))
	an.PassRate = round2(float64(an.Passed) / float64(len(results)) * 100)
	return an
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
