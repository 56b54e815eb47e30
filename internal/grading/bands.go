package grading

const PassMark = 40

type Status string

const (
	Pass Status = "Pass"
	Fail Status = "Fail"
)

// bands are checked top-down; the first floor the score reaches wins.
var bands = []struct {
	floor  int
	letter string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{40, "E"},
}

// Letter maps a percentage score to its grade letter.
func Letter(score int) string {
	for _, b := range bands {
		if score >= b.floor {
			return b.letter
		}
	}
	return "F"
}

func StatusOf(score int) Status {
	if score >= PassMark {
		return Pass
	}
	return Fail
}

// Band is what reporting shows next to a score.
type Band struct {
	Score  int    `json:"percentage"`
	Grade  string `json:"grade"`
	Status Status `json:"status"`
}

func Report(score int) Band {
	return Band{Score: score, Grade: Letter(score), Status: StatusOf(score)}
}
