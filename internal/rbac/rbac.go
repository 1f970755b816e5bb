package rbac

type Role string
type Action string

const (
	RoleMember Role = "member"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionVote    Action = "vote"
	ActionSuggest Action = "suggest"
	ActionReview  Action = "review"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionVote || action == ActionSuggest || action == ActionReview
	case RoleMember:
		return action == ActionVote || action == ActionSuggest
	default:
		return false
	}
}

// Normalize maps unknown role strings to the least-privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}
