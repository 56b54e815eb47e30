package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

// GET /student/exams?batch_id=...
func ListStudentExamsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch := strings.TrimSpace(r.URL.Query().Get("batch_id"))
		list, err := svc.ListExamsForStudent(r.Context(), caller(r), batch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []exam.Exam{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /student/exams/{examID}
func GetStudentExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.GetExamForStudent(r.Context(), caller(r), examID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /student/exams/{examID}/attempts  { "answers": [{"question_id": "...", "chosen_index": 1}] }
func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exam.Submission
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Submit(r.Context(), caller(r), examID(r), req.Answers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GET /student/results
func ListMyResultsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMyResults(r.Context(), caller(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []exam.Result{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
