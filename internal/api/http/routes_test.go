package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
	"github.com/mind-engage/mindengage-exams/internal/exam"
)

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	authSvc *auth.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	authSvc := auth.NewAuthService("test-key", time.Hour, nil)
	svc := exam.NewService(exam.NewInMemoryStore())
	r := chi.NewRouter()
	Mount(r, svc, authSvc, RouteOptions{})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, authSvc: authSvc}
}

func (h *harness) token(p principal.Principal) string {
	tok, err := h.authSvc.IssueJWT(p)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, tok string, body interface{}, out interface{}) int {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestExamLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	inst := h.token(principal.Institute("inst-1"))
	stu := h.token(principal.Student("inst-1", "stu-1"))

	var e exam.Exam
	code := h.do(http.MethodPost, "/exams", inst, map[string]interface{}{
		"title": "Algebra", "duration_minutes": 30,
	}, &e)
	require.Equal(t, http.StatusCreated, code)
	assert.False(t, e.Published)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		var q exam.Question
		code = h.do(http.MethodPost, "/exams/"+e.ID+"/questions", inst, map[string]interface{}{
			"text": "q", "options": []string{"a", "b", "c"}, "correct_index": 1,
		}, &q)
		require.Equal(t, http.StatusCreated, code)
		ids = append(ids, q.ID)
	}

	// padded path ids resolve the same way for exams and questions
	var edited exam.Question
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/exams/%20"+e.ID+"/questions/%20"+ids[0]+"%20", inst,
		map[string]interface{}{"text": "edited"}, &edited))
	assert.Equal(t, ids[0], edited.ID)
	assert.Equal(t, "edited", edited.Text)

	// unpublished exams are invisible to students
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/student/exams/"+e.ID, stu, nil, nil))

	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/exams/"+e.ID, inst, map[string]interface{}{"published": true}, nil))

	var view map[string]interface{}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/student/exams/"+e.ID, stu, nil, &view))
	for _, q := range view["questions"].([]interface{}) {
		_, leaked := q.(map[string]interface{})["correct_index"]
		assert.False(t, leaked)
	}

	// an answer without a chosen option is rejected, not graded as option 0
	missing := map[string]interface{}{"answers": []map[string]interface{}{{"question_id": ids[0]}}}
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/student/exams/"+e.ID+"/attempts", stu, missing, nil))

	answers := map[string]interface{}{"answers": []map[string]interface{}{
		{"question_id": ids[0], "chosen_index": 1},
		{"question_id": ids[1], "chosen_index": 1},
		{"question_id": ids[2], "chosen_index": 0},
	}}
	var res exam.SubmitResult
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/student/exams/"+e.ID+"/attempts", stu, answers, &res))
	assert.Equal(t, 67, res.Score)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 3, res.Total)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/student/exams/"+e.ID+"/attempts", stu, answers, nil))

	var results []exam.Result
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/exams/"+e.ID+"/results", inst, nil, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].Grade)

	var mine []exam.Result
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/student/results", stu, nil, &mine))
	assert.Len(t, mine, 1)

	var purged map[string]int64
	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/students/stu-1/attempts", inst, nil, &purged))
	assert.Equal(t, int64(1), purged["deleted"])
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	inst := h.token(principal.Institute("inst-1"))
	other := h.token(principal.Institute("inst-2"))
	stu := h.token(principal.Student("inst-1", "stu-1"))

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/exams", "", nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/exams", stu, map[string]interface{}{"title": "Algebra", "duration_minutes": 30}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/exams", inst, map[string]interface{}{"title": "", "duration_minutes": 0}, nil))

	var e exam.Exam
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/exams", inst, map[string]interface{}{"title": "Algebra", "duration_minutes": 30}, &e))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/exams/"+e.ID, other, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/exams/"+e.ID, other, nil, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/exams/"+e.ID+"/questions", inst, map[string]interface{}{
		"text": "q", "options": []string{"a", "b"}, "correct_index": 5,
	}, nil))
}

func TestValidationBodyListsFields(t *testing.T) {
	h := newHarness(t)
	inst := h.token(principal.Institute("inst-1"))

	b, _ := json.Marshal(map[string]interface{}{"title": "", "duration_minutes": 0})
	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/exams", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+inst)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Fields, "title")
	assert.Contains(t, body.Fields, "duration_minutes")
}

func TestGradeHandler(t *testing.T) {
	h := newHarness(t)

	var band map[string]interface{}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/grades/85", "", nil, &band))
	assert.Equal(t, "A", band["grade"])
	assert.Equal(t, "Pass", band["status"])

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/grades/39", "", nil, &band))
	assert.Equal(t, "F", band["grade"])
	assert.Equal(t, "Fail", band["status"])

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/grades/100", "", nil, &band))
	assert.Equal(t, "A+", band["grade"])
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/grades/0", "", nil, &band))
	assert.Equal(t, "F", band["grade"])

	for _, bad := range []string{"abc", "500", "101", "-3"} {
		assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/grades/"+bad, "", nil, nil), bad)
	}
}
