package rbac

import (
	"net/http"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission for the principal in the request context.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok || p.Validate() != nil || !defaultChecker.Has(p.Kind, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
