package rbac

import "github.com/langprep/langprep/internal/submission"

// Principal is the already-authenticated caller: identity plus role.
type Principal struct {
	ID   string
	Role string
}

const RoleAdmin = "admin"

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanView: admins see every submission, learners only their own. Pure, no
// I/O, so it is exhaustively unit-testable.
func CanView(sub submission.Submission, caller Principal) bool {
	return caller.IsAdmin() || caller.ID == sub.UserID
}

// CanGrade: grading is admin-only.
func CanGrade(caller Principal) bool { return caller.IsAdmin() }

// CanModifyContent: content authoring is admin-only. Owning a test does not
// grant edit rights beyond what the role grants.
func CanModifyContent(caller Principal) bool { return caller.IsAdmin() }
