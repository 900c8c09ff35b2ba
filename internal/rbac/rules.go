package rbac

// Default role policy. Learners hold "user"; content authoring and grading
// are admin-only.
var RolePermissions = map[string][]string{
	"user": {
		"test:view",
		"submission:create",
		"submission:view-own",
	},
	"admin": {
		"*", // everything
	},
}
