package rbac

import (
	"strings"

	"github.com/mind-engage/mindengage-exams/internal/auth/principal"
)

// Checker answers whether a principal kind holds a permission. Patterns may
// end in "*" to cover a whole prefix ("exam:*").
type Checker struct {
	perms map[principal.Kind][]string
}

func NewChecker(rp map[principal.Kind][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{perms: rp}
}

func (c *Checker) Has(kind principal.Kind, perm string) bool {
	for _, p := range c.perms[kind] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(perm, prefix)
	}
	return false
}
