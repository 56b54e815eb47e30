package grading

import "math"

// Q is the grading view of a question: its id and the index of the right option.
type Q struct {
	ID           string
	CorrectIndex int
}

// Answer is one submitted (question, chosen option) pair.
type Answer struct {
	QuestionID  string
	ChosenIndex int
}

// Result is the outcome of grading a whole submission.
type Result struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	Score   int `json:"score"` // integer percentage
}

// Grade scores answers against the exam's questions using exact-match single
// choice. Total is always len(questions), so skipped questions count against
// the student. Answers for unknown question ids are ignored. Only the first
// answer for a given question is considered.
func Grade(questions []Q, answers []Answer) Result {
	key := make(map[string]int, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectIndex
	}

	seen := make(map[string]struct{}, len(answers))
	correct := 0
	for _, a := range answers {
		want, ok := key[a.QuestionID]
		if !ok {
			continue
		}
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		if a.ChosenIndex == want {
			correct++
		}
	}

	total := len(questions)
	return Result{Correct: correct, Total: total, Score: Percent(correct, total)}
}

// Percent is round(correct / max(total, 1) * 100).
func Percent(correct, total int) int {
	return int(math.Round(float64(correct) / float64(max(total, 1)) * 100))
}
