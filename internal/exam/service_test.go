package exam

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
)

func institute(id string) principal.Principal { return principal.Institute(id) }
func student(inst, id string) principal.Principal {
	return principal.Student(inst, id)
}

func intp(i int) *int    { return &i }
func boolp(b bool) *bool { return &b }

// tickingClock advances one second per call so ordering is deterministic.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := base
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(opts ...Option) *Service {
	return NewService(NewInMemoryStore(), append([]Option{WithClock(tickingClock())}, opts...)...)
}

// seedPublishedExam creates a published exam whose questions all have
// correct index 1.
func seedPublishedExam(t *testing.T, svc *Service, inst string, n int) (Exam, []string) {
	t.Helper()
	ctx := context.Background()
	e, err := svc.CreateExam(ctx, institute(inst), NewExam{Title: "Algebra", DurationMinutes: 45, Published: true})
	require.NoError(t, err)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q, err := svc.AddQuestion(ctx, institute(inst), e.ID, NewQuestion{
			Text: "2+2?", Options: []string{"3", "4", "5"}, CorrectIndex: intp(1),
		})
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}
	return e, ids
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestCreateExam(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	e, err := svc.CreateExam(ctx, institute("inst-1"), NewExam{Title: "  Physics  ", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, "Physics", e.Title)
	assert.Equal(t, "inst-1", e.InstituteID)
	assert.False(t, e.Published)
	assert.NotEmpty(t, e.ID)

	tests := []struct {
		name   string
		in     NewExam
		fields []string
	}{
		{"short title", NewExam{Title: "ab", DurationMinutes: 10}, []string{"title"}},
		{"blank title", NewExam{Title: "   ", DurationMinutes: 10}, []string{"title"}},
		{"no duration", NewExam{Title: "Physics"}, []string{"duration_minutes"}},
		{"too long", NewExam{Title: "Physics", DurationMinutes: 601}, []string{"duration_minutes"}},
		{"empty batch", NewExam{Title: "Physics", DurationMinutes: 10, BatchID: strp("")}, []string{"batch_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExam(ctx, institute("inst-1"), tt.in)
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
		})
	}

	_, err = svc.CreateExam(ctx, student("inst-1", "s1"), NewExam{Title: "Physics", DurationMinutes: 10})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateExam(ctx, principal.Principal{}, NewExam{Title: "Physics", DurationMinutes: 10})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateExam(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, err := svc.CreateExam(ctx, institute("inst-1"), NewExam{
		Title: "Physics", DurationMinutes: 60, Subject: strp("Science"), BatchID: strp("b1"),
	})
	require.NoError(t, err)

	got, err := svc.UpdateExam(ctx, institute("inst-1"), e.ID, ExamPatch{
		Title:     strp("Physics II"),
		Subject:   strp(""),
		Published: boolp(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics II", got.Title)
	assert.Nil(t, got.Subject)
	require.NotNil(t, got.BatchID)
	assert.Equal(t, "b1", *got.BatchID)
	assert.True(t, got.Published)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = svc.UpdateExam(ctx, institute("inst-1"), e.ID, ExamPatch{DurationMinutes: intp(0)})
	assert.Equal(t, []string{"duration_minutes"}, fieldNames(t, err))

	_, err = svc.UpdateExam(ctx, institute("inst-2"), e.ID, ExamPatch{Title: strp("Stolen")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	inst := institute("inst-1")
	e, err := svc.CreateExam(ctx, inst, NewExam{Title: "Physics", DurationMinutes: 60})
	require.NoError(t, err)

	_, err = svc.AddQuestion(ctx, inst, e.ID, NewQuestion{Text: "q", Options: []string{"a", "b"}, CorrectIndex: intp(2)})
	assert.Equal(t, []string{"correct_index"}, fieldNames(t, err))
	_, err = svc.AddQuestion(ctx, inst, e.ID, NewQuestion{Text: "q", Options: []string{"a"}, CorrectIndex: intp(0)})
	assert.Equal(t, []string{"options"}, fieldNames(t, err))
	_, err = svc.AddQuestion(ctx, inst, e.ID, NewQuestion{Text: "q", Options: []string{"a", "b"}})
	assert.Equal(t, []string{"correct_index"}, fieldNames(t, err))
	_, err = svc.AddQuestion(ctx, inst, "missing", NewQuestion{Text: "q", Options: []string{"a", "b"}, CorrectIndex: intp(0)})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddQuestion(ctx, institute("inst-2"), e.ID, NewQuestion{Text: "q", Options: []string{"a", "b"}, CorrectIndex: intp(0)})
	assert.ErrorIs(t, err, ErrNotFound)

	q, err := svc.AddQuestion(ctx, inst, e.ID, NewQuestion{Text: "q", Options: []string{"a", "b", "c"}, CorrectIndex: intp(2)})
	require.NoError(t, err)

	// shrinking the options must keep the stored index in range
	_, err = svc.UpdateQuestion(ctx, inst, e.ID, q.ID, QuestionPatch{Options: []string{"a", "b"}})
	assert.Equal(t, []string{"correct_index"}, fieldNames(t, err))

	got, err := svc.UpdateQuestion(ctx, inst, e.ID, q.ID, QuestionPatch{Options: []string{"a", "b"}, CorrectIndex: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, got.CorrectIndex)

	_, err = svc.UpdateQuestion(ctx, institute("inst-2"), e.ID, q.ID, QuestionPatch{Text: strp("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteQuestion(ctx, institute("inst-2"), e.ID, q.ID), ErrNotFound)
	require.NoError(t, svc.DeleteQuestion(ctx, inst, e.ID, q.ID))
	assert.ErrorIs(t, svc.DeleteQuestion(ctx, inst, e.ID, q.ID), ErrNotFound)
}

func TestPublicationGate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	inst := institute("inst-1")

	draft, err := svc.CreateExam(ctx, inst, NewExam{Title: "Draft", DurationMinutes: 10})
	require.NoError(t, err)
	open, err := svc.CreateExam(ctx, inst, NewExam{Title: "Open", DurationMinutes: 10, Published: true})
	require.NoError(t, err)
	b1, err := svc.CreateExam(ctx, inst, NewExam{Title: "Batch one", DurationMinutes: 10, Published: true, BatchID: strp("b1")})
	require.NoError(t, err)
	_, err = svc.CreateExam(ctx, inst, NewExam{Title: "Batch two", DurationMinutes: 10, Published: true, BatchID: strp("b2")})
	require.NoError(t, err)
	foreign, err := svc.CreateExam(ctx, institute("inst-2"), NewExam{Title: "Foreign", DurationMinutes: 10, Published: true})
	require.NoError(t, err)

	stu := student("inst-1", "s1")
	list, err := svc.ListExamsForStudent(ctx, stu, "")
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, e := range list {
		assert.True(t, e.Published)
		assert.Equal(t, "inst-1", e.InstituteID)
	}

	list, err = svc.ListExamsForStudent(ctx, stu, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID, open.ID}, examIDs(list))

	_, err = svc.GetExamForStudent(ctx, stu, draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetExamForStudent(ctx, stu, foreign.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ListExamsForStudent(ctx, inst, "")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.False(t, Visible(open, inst))
	assert.False(t, Visible(draft, stu))
	assert.True(t, Visible(open, stu))
}

func TestStudentViewHidesCorrectIndex(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, _ := seedPublishedExam(t, svc, "inst-1", 2)

	view, err := svc.GetExamForStudent(ctx, student("inst-1", "s1"), e.ID)
	require.NoError(t, err)
	require.Len(t, view.Questions, 2)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_index")

	detail, err := svc.GetExam(ctx, institute("inst-1"), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Questions[0].CorrectIndex)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, ids := seedPublishedExam(t, svc, "inst-1", 3)
	stu := student("inst-1", "s1")

	res, err := svc.Submit(ctx, stu, e.ID, []Answer{
		{QuestionID: ids[0], ChosenIndex: intp(1)},
		{QuestionID: ids[1], ChosenIndex: intp(1)},
		{QuestionID: ids[2], ChosenIndex: intp(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitResult{AttemptID: res.AttemptID, Score: 67, Correct: 2, Total: 3}, res)

	first := res.AttemptID
	_, err = svc.Submit(ctx, stu, e.ID, []Answer{
		{QuestionID: ids[0], ChosenIndex: intp(1)},
		{QuestionID: ids[1], ChosenIndex: intp(1)},
		{QuestionID: ids[2], ChosenIndex: intp(1)},
	})
	assert.ErrorIs(t, err, ErrConflict)

	// the rejected resubmission leaves the stored attempt alone
	results, err := svc.ListResults(ctx, institute("inst-1"), e.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, first, results[0].AttemptID)
	assert.Equal(t, 67, results[0].Score)
	assert.Equal(t, 2, results[0].Correct)

	// unknown questions are ignored; unanswered ones count as wrong
	res, err = svc.Submit(ctx, student("inst-1", "s2"), e.ID, []Answer{
		{QuestionID: "nope", ChosenIndex: intp(1)},
		{QuestionID: ids[0], ChosenIndex: intp(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 33, res.Score)
	assert.Equal(t, 3, res.Total)

	_, err = svc.Submit(ctx, student("inst-1", "s3"), e.ID, []Answer{{ChosenIndex: intp(1)}})
	assert.Equal(t, []string{"answers[0].question_id"}, fieldNames(t, err))

	_, err = svc.Submit(ctx, student("inst-2", "s1"), e.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Submit(ctx, institute("inst-1"), e.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitRequiresChosenIndex(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	inst := institute("inst-1")
	e, err := svc.CreateExam(ctx, inst, NewExam{Title: "Algebra", DurationMinutes: 10, Published: true})
	require.NoError(t, err)
	q, err := svc.AddQuestion(ctx, inst, e.ID, NewQuestion{Text: "1+1?", Options: []string{"2", "3"}, CorrectIndex: intp(0)})
	require.NoError(t, err)

	stu := student("inst-1", "s1")
	_, err = svc.Submit(ctx, stu, e.ID, []Answer{{QuestionID: q.ID}})
	assert.Equal(t, []string{"answers[0].chosen_index"}, fieldNames(t, err))
	_, err = svc.Submit(ctx, stu, e.ID, []Answer{{QuestionID: q.ID, ChosenIndex: intp(-1)}})
	assert.Equal(t, []string{"answers[0].chosen_index"}, fieldNames(t, err))

	results, err := svc.ListResults(ctx, inst, e.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	res, err := svc.Submit(ctx, stu, e.ID, []Answer{{QuestionID: q.ID, ChosenIndex: intp(0)}})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
}

func TestGradingSkipsAnswersWithoutChoice(t *testing.T) {
	got := gradingAnswers([]Answer{{QuestionID: "q1"}, {QuestionID: "q2", ChosenIndex: intp(0)}})
	require.Len(t, got, 1)
	assert.Equal(t, "q2", got[0].QuestionID)
}

func TestSubmitEmptyExam(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, _ := seedPublishedExam(t, svc, "inst-1", 0)

	res, err := svc.Submit(ctx, student("inst-1", "s1"), e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.Total)
}

func TestSubmitUnpublished(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, err := svc.CreateExam(ctx, institute("inst-1"), NewExam{Title: "Draft", DurationMinutes: 10})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, student("inst-1", "s1"), e.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSubmitsYieldOneAttempt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, ids := seedPublishedExam(t, svc, "inst-1", 1)
	stu := student("inst-1", "s1")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, stu, e.ID, []Answer{{QuestionID: ids[0], ChosenIndex: intp(1)}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestDeleteExamCascades(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store, WithClock(tickingClock()))
	e, ids := seedPublishedExam(t, svc, "inst-1", 2)
	_, err := svc.Submit(ctx, student("inst-1", "s1"), e.ID, []Answer{{QuestionID: ids[0], ChosenIndex: intp(1)}})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteExam(ctx, institute("inst-2"), e.ID), ErrNotFound)
	require.NoError(t, svc.DeleteExam(ctx, institute("inst-1"), e.ID))

	_, err = svc.GetExam(ctx, institute("inst-1"), e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	qs, err := store.FindQuestions(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, qs)
	as, err := store.FindAttempts(ctx, AttemptFilter{InstituteID: "inst-1", ExamID: e.ID})
	require.NoError(t, err)
	assert.Empty(t, as)
}

func TestPurgeStudentAttempts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e1, _ := seedPublishedExam(t, svc, "inst-1", 1)
	e2, _ := seedPublishedExam(t, svc, "inst-1", 1)
	for _, id := range []string{e1.ID, e2.ID} {
		_, err := svc.Submit(ctx, student("inst-1", "s1"), id, nil)
		require.NoError(t, err)
	}
	_, err := svc.Submit(ctx, student("inst-1", "s2"), e1.ID, nil)
	require.NoError(t, err)

	n, err := svc.PurgeStudentAttempts(ctx, institute("inst-1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// another institute cannot reach these attempts
	n, err = svc.PurgeStudentAttempts(ctx, institute("inst-2"), "s2")
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := svc.ListResults(ctx, institute("inst-1"), e1.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s2", results[0].StudentID)

	_, err = svc.PurgeStudentAttempts(ctx, institute("inst-1"), " ")
	assert.Equal(t, []string{"student_id"}, fieldNames(t, err))
	_, err = svc.PurgeStudentAttempts(ctx, student("inst-1", "s2"), "s2")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResultsAndAnalytics(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	e, ids := seedPublishedExam(t, svc, "inst-1", 4)

	submit := func(studentID string, correct int) {
		answers := make([]Answer, 0, len(ids))
		for i, id := range ids {
			idx := 0
			if i < correct {
				idx = 1
			}
			answers = append(answers, Answer{QuestionID: id, ChosenIndex: intp(idx)})
		}
		_, err := svc.Submit(ctx, student("inst-1", studentID), e.ID, answers)
		require.NoError(t, err)
	}
	submit("s1", 4) // 100
	submit("s2", 2) // 50
	submit("s3", 1) // 25

	results, err := svc.ListResults(ctx, institute("inst-1"), e.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "s3", results[0].StudentID)
	assert.Equal(t, "F", results[0].Grade)

	an, err := svc.ExamAnalytics(ctx, institute("inst-1"), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, an.Attempts)
	assert.Equal(t, 58.33, an.Average)
	assert.Equal(t, 100, an.Highest)
	assert.Equal(t, 25, an.Lowest)
	assert.Equal(t, 2, an.Passed)
	assert.Equal(t, 66.67, an.PassRate)
	assert.Equal(t, map[string]int{"A+": 1, "D": 1, "F": 1}, an.Grades)

	_, err = svc.ListResults(ctx, institute("inst-2"), e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := svc.ListMyResults(ctx, student("inst-1", "s2"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 50, mine[0].Score)
	assert.Equal(t, "D", mine[0].Grade)

	empty := Summarize("x", nil)
	assert.Zero(t, empty.Attempts)
	assert.Zero(t, empty.Average)
}

type recordedEvent struct {
	typ, key string
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
	fail   error
}

func (f *fakeSink) Record(_ context.Context, typ, key string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{typ, key})
	return f.fail
}

func TestEventsRecorded(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	svc := newTestService(WithEvents(sink))
	e, _ := seedPublishedExam(t, svc, "inst-1", 1)
	res, err := svc.Submit(ctx, student("inst-1", "s1"), e.ID, nil)
	require.NoError(t, err)
	_, err = svc.PurgeStudentAttempts(ctx, institute("inst-1"), "s1")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExam(ctx, institute("inst-1"), e.ID))

	assert.Equal(t, []recordedEvent{
		{EventExamCreated, e.ID},
		{EventAttemptSubmitted, res.AttemptID},
		{EventStudentPurged, "s1"},
		{EventExamDeleted, e.ID},
	}, sink.events)
}

func TestEventSinkFailureDoesNotFailRequest(t *testing.T) {
	sink := &fakeSink{fail: assert.AnError}
	svc := newTestService(WithEvents(sink))
	_, err := svc.CreateExam(context.Background(), institute("inst-1"), NewExam{Title: "Physics", DurationMinutes: 5})
	assert.NoError(t, err)
}
