package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
	"github.com/mind-engage/mindengage-exams/internal/exam"
)

func caller(r *http.Request) principal.Principal {
	p, _ := principal.FromContext(r.Context())
	return p
}

func examID(r *http.Request) string     { return strings.TrimSpace(chi.URLParam(r, "examID")) }
func questionID(r *http.Request) string { return strings.TrimSpace(chi.URLParam(r, "questionID")) }

// POST /exams
func CreateExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.NewExam
		if !decodeJSON(w, r, &in) {
			return
		}
		e, err := svc.CreateExam(r.Context(), caller(r), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /exams
func ListExamsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListExams(r.Context(), caller(r))
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

// GET /exams/{examID} (institute view, correct answers included)
func GetExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.GetExam(r.Context(), caller(r), examID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// PATCH /exams/{examID}
func UpdateExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch exam.ExamPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		e, err := svc.UpdateExam(r.Context(), caller(r), examID(r), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteExam(r.Context(), caller(r), examID(r)); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /exams/{examID}/questions
func AddQuestionHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.NewQuestion
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := svc.AddQuestion(r.Context(), caller(r), examID(r), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PATCH /exams/{examID}/questions/{questionID}
func UpdateQuestionHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch exam.QuestionPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		q, err := svc.UpdateQuestion(r.Context(), caller(r), examID(r), questionID(r), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /exams/{examID}/questions/{questionID}
func DeleteQuestionHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteQuestion(r.Context(), caller(r), examID(r), questionID(r)); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
