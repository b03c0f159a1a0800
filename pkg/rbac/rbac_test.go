package rbac

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleFreelancer, PermissionWriteMilestone, true},
		{RoleFreelancer, PermissionReadPortal, false},
		{RoleClient, PermissionReadPortal, true},
		{RoleClient, PermissionAcceptInvitation, true},
		{RoleClient, PermissionWriteMilestone, false},
		{"", PermissionCreateProject, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermissionError(t *testing.T) {
	err := CheckPermission(RoleClient, PermissionCreateProject)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *PermissionDeniedError", err)
	}
	if denied.Permission != PermissionCreateProject {
		t.Fatalf("permission = %q", denied.Permission)
	}
	if CheckPermission(RoleFreelancer, PermissionCreateProject) != nil {
		t.Fatalf("freelancer must be allowed to create projects")
	}
}
