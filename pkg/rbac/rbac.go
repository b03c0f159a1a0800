package rbac

const (
	PermissionCreateProject    = "project:create"
	PermissionWriteProject     = "project:write"
	PermissionWriteMilestone   = "milestone:write"
	PermissionCreateInvitation = "invitation:create"
	PermissionGenerateRoadmap  = "roadmap:generate"

	PermissionReadPortal       = "portal:read"
	PermissionAcceptInvitation = "invitation:accept"
)

const (
	RoleFreelancer = "FREELANCER"
	RoleClient     = "CLIENT"
)

var rolePermissions = map[string][]string{
	RoleFreelancer: {
		PermissionCreateProject,
		PermissionWriteProject,
		PermissionWriteMilestone,
		PermissionCreateInvitation,
		PermissionGenerateRoadmap,
	},
	RoleClient: {
		PermissionReadPortal,
		PermissionAcceptInvitation,
	},
}

// HasPermission reports whether role grants permission.
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning an error, for handlers.
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
