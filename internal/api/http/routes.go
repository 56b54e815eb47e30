package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/rbac"
)

type RouteOptions struct {
	EnableLocalAuth bool
}

// Mount registers the exam API on r.
func Mount(r chi.Router, svc *exam.Service, authSvc *auth.AuthService, opts RouteOptions) {
	if opts.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc))
	}

	r.Get("/grades/{score}", GradeHandler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Protected API (JWT → principal in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("token:issue-student")).
			Post("/auth/students/{studentID}/token", auth.StudentTokenHandler(authSvc))

		// Institute authoring
		pr.Route("/exams", func(er chi.Router) {
			er.With(rbac.Require("exam:create")).Post("/", CreateExamHandler(svc))
			er.With(rbac.Require("exam:list")).Get("/", ListExamsHandler(svc))
			er.With(rbac.Require("exam:view")).Get("/{examID}", GetExamHandler(svc))
			er.With(rbac.Require("exam:update")).Patch("/{examID}", UpdateExamHandler(svc))
			er.With(rbac.Require("exam:delete")).Delete("/{examID}", DeleteExamHandler(svc))

			er.With(rbac.Require("question:create")).Post("/{examID}/questions", AddQuestionHandler(svc))
			er.With(rbac.Require("question:update")).Patch("/{examID}/questions/{questionID}", UpdateQuestionHandler(svc))
			er.With(rbac.Require("question:delete")).Delete("/{examID}/questions/{questionID}", DeleteQuestionHandler(svc))

			er.With(rbac.Require("result:view-all")).Get("/{examID}/results", ListResultsHandler(svc))
			er.With(rbac.Require("result:view-all")).Get("/{examID}/analytics", ExamAnalyticsHandler(svc))
		})
		pr.With(rbac.Require("attempt:purge")).
			Delete("/students/{studentID}/attempts", PurgeStudentHandler(svc))

		// Student flow
		pr.Route("/student", func(sr chi.Router) {
			sr.With(rbac.Require("exam:view-published")).Get("/exams", ListStudentExamsHandler(svc))
			sr.With(rbac.Require("exam:view-published")).Get("/exams/{examID}", GetStudentExamHandler(svc))
			sr.With(rbac.Require("attempt:submit")).Post("/exams/{examID}/attempts", SubmitAttemptHandler(svc))
			sr.With(rbac.Require("result:view-own")).Get("/results", ListMyResultsHandler(svc))
		})
	})
}
