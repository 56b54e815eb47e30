package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/grading"
)

// GET /exams/{examID}/results
func ListResultsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListResults(r.Context(), caller(r), examID(r))
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

// GET /exams/{examID}/analytics
func ExamAnalyticsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.ExamAnalytics(r.Context(), caller(r), examID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// DELETE /students/{studentID}/attempts
func PurgeStudentHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.PurgeStudentAttempts(r.Context(), caller(r), strings.TrimSpace(chi.URLParam(r, "studentID")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

// GET /grades/{score}
func GradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := strconv.Atoi(chi.URLParam(r, "score"))
		if err != nil || score < 0 || score > 100 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "score must be an integer between 0 and 100"})
			return
		}
		writeJSON(w, http.StatusOK, grading.Report(score))
	}
}
