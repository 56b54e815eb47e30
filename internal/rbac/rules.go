package rbac

import "github.com/mind-engage/mindengage-exams/internal/auth/principal"

// RolePermissions maps a principal kind to what it may do.
var RolePermissions = map[principal.Kind][]string{
	principal.KindStudent: {
		"exam:view-published",
		"attempt:submit",
		"result:view-own",
	},
	principal.KindInstitute: {
		"exam:*",
		"question:*",
		"result:view-all",
		"attempt:purge",
		"token:issue-student",
	},
}
