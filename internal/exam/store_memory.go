package exam

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu        sync.RWMutex
	exams     map[string]Exam
	questions map[string]Question
	attempts  map[string]Attempt
	byPair    map[string]string // examID|studentID -> attempt id
}

// NewInMemoryStore keeps everything in maps. Used by tests and the "memory" driver.
func NewInMemoryStore() Store {
	return &memoryStore{
		exams:     map[string]Exam{},
		questions: map[string]Question{},
		attempts:  map[string]Attempt{},
		byPair:    map[string]string{},
	}
}

func pairKey(examID, studentID string) string { return examID + "|" + studentID }

func (m *memoryStore) InsertExam(_ context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = cloneExam(e)
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, instituteID, id string) (Exam, error) {
	if instituteID == "" {
		return Exam{}, ErrMissingTenant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok || e.InstituteID != instituteID {
		return Exam{}, ErrNotFound
	}
	return cloneExam(e), nil
}

func (m *memoryStore) FindExams(_ context.Context, f ExamFilter) ([]Exam, error) {
	if f.InstituteID == "" {
		return nil, ErrMissingTenant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Exam{}
	for _, e := range m.exams {
		if e.InstituteID != f.InstituteID {
			continue
		}
		if f.PublishedOnly && !e.Published {
			continue
		}
		if f.BatchID != "" && e.BatchID != nil && *e.BatchID != f.BatchID {
			continue
		}
		out = append(out, cloneExam(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryStore) UpdateExam(_ context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.exams[e.ID]
	if !ok || cur.InstituteID != e.InstituteID {
		return ErrNotFound
	}
	m.exams[e.ID] = cloneExam(e)
	return nil
}

func (m *memoryStore) DeleteExam(_ context.Context, instituteID, id string) error {
	if instituteID == "" {
		return ErrMissingTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.exams[id]
	if !ok || cur.InstituteID != instituteID {
		return ErrNotFound
	}
	delete(m.exams, id)
	return nil
}

func (m *memoryStore) InsertQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (m *memoryStore) GetQuestion(_ context.Context, examID, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok || q.ExamID != examID {
		return Question{}, ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (m *memoryStore) FindQuestions(_ context.Context, examID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Question{}
	for _, q := range m.questions {
		if q.ExamID == examID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) UpdateQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.questions[q.ID]
	if !ok || cur.ExamID != q.ExamID {
		return ErrNotFound
	}
	m.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, examID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.questions[id]
	if !ok || cur.ExamID != examID {
		return ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m *memoryStore) DeleteQuestions(_ context.Context, examID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, q := range m.questions {
		if q.ExamID == examID {
			delete(m.questions, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) InsertAttempt(_ context.Context, a Attempt) error {
	if a.InstituteID == "" {
		return ErrMissingTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(a.ExamID, a.StudentID)
	if _, dup := m.byPair[k]; dup {
		return ErrConflict
	}
	m.byPair[k] = a.ID
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *memoryStore) FindAttempt(_ context.Context, instituteID, examID, studentID string) (Attempt, error) {
	if instituteID == "" {
		return Attempt{}, ErrMissingTenant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey(examID, studentID)]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a := m.attempts[id]
	if a.InstituteID != instituteID {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) FindAttempts(_ context.Context, f AttemptFilter) ([]Attempt, error) {
	if f.InstituteID == "" {
		return nil, ErrMissingTenant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if attemptMatches(a, f) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryStore) DeleteAttempts(_ context.Context, f AttemptFilter) (int64, error) {
	if f.InstituteID == "" {
		return 0, ErrMissingTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.attempts {
		if attemptMatches(a, f) {
			delete(m.attempts, id)
			delete(m.byPair, pairKey(a.ExamID, a.StudentID))
			n++
		}
	}
	return n, nil
}

func attemptMatches(a Attempt, f AttemptFilter) bool {
	if a.InstituteID != f.InstituteID {
		return false
	}
	if f.ExamID != "" && a.ExamID != f.ExamID {
		return false
	}
	if f.StudentID != "" && a.StudentID != f.StudentID {
		return false
	}
	return true
}

func cloneExam(e Exam) Exam {
	if e.Subject != nil {
		s := *e.Subject
		e.Subject = &s
	}
	if e.BatchID != nil {
		b := *e.BatchID
		e.BatchID = &b
	}
	if e.ScheduledAt != nil {
		t := *e.ScheduledAt
		e.ScheduledAt = &t
	}
	return e
}

func cloneQuestion(q Question) Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneAttempt(a Attempt) Attempt {
	a.Answers = append([]Answer(nil), a.Answers...)
	return a
}
