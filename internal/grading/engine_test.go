package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func threeQuestions() []Q {
	return []Q{{ID: "q1", CorrectIndex: 0}, {ID: "q2", CorrectIndex: 1}, {ID: "q3", CorrectIndex: 2}}
}

func TestGrade(t *testing.T) {
	cases := []struct {
		name    string
		qs      []Q
		answers []Answer
		want    Result
	}{
		{
			name:    "two of three",
			qs:      threeQuestions(),
			answers: []Answer{{"q1", 0}, {"q2", 1}, {"q3", 0}},
			want:    Result{Correct: 2, Total: 3, Score: 67},
		},
		{
			name:    "all correct",
			qs:      threeQuestions(),
			answers: []Answer{{"q1", 0}, {"q2", 1}, {"q3", 2}},
			want:    Result{Correct: 3, Total: 3, Score: 100},
		},
		{
			name:    "none correct",
			qs:      threeQuestions(),
			answers: []Answer{{"q1", 3}, {"q2", 0}, {"q3", 1}},
			want:    Result{Correct: 0, Total: 3, Score: 0},
		},
		{
			name:    "subset answered, all right",
			qs:      threeQuestions(),
			answers: []Answer{{"q1", 0}},
			want:    Result{Correct: 1, Total: 3, Score: 33},
		},
		{
			name:    "unknown question ignored",
			qs:      threeQuestions(),
			answers: []Answer{{"nope", 0}, {"q2", 1}},
			want:    Result{Correct: 1, Total: 3, Score: 33},
		},
		{
			name:    "no questions",
			qs:      nil,
			answers: []Answer{{"q1", 0}},
			want:    Result{Correct: 0, Total: 0, Score: 0},
		},
		{
			name:    "repeated answer counted once",
			qs:      threeQuestions(),
			answers: []Answer{{"q1", 0}, {"q1", 0}, {"q1", 0}},
			want:    Result{Correct: 1, Total: 3, Score: 33},
		},
		{
			name:    "first answer for a question wins",
			qs:      threeQuestions(),
			answers: []Answer{{"q2", 0}, {"q2", 1}},
			want:    Result{Correct: 0, Total: 3, Score: 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Grade(tc.qs, tc.answers))
		})
	}
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 13, Percent(1, 8)) // 12.5 rounds half away from zero
	assert.Equal(t, 0, Percent(0, 0))
}

func TestLetterAndStatus(t *testing.T) {
	cases := []struct {
		score  int
		letter string
		status Status
	}{
		{100, "A+", Pass},
		{90, "A+", Pass},
		{89, "A", Pass},
		{80, "A", Pass},
		{70, "B", Pass},
		{60, "C", Pass},
		{50, "D", Pass},
		{40, "E", Pass},
		{39, "F", Fail},
		{0, "F", Fail},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.letter, Letter(tc.score), "score %d", tc.score)
		assert.Equal(t, tc.status, StatusOf(tc.score), "score %d", tc.score)
	}
	assert.Equal(t, Band{Score: 67, Grade: "C", Status: Pass}, Report(67))
}
