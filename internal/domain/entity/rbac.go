package entity

import (
	"time"

	"github.com/google/uuid"
)

// PermissionWildcard matches any resource or action in a permission entry.
const PermissionWildcard = "*"

// Role is a dynamic, database-backed role aggregating permissions.
// It is many-to-many with both User and Permission, and exists alongside
// the user's static AccountRole.
type Role struct {
	ID          uuid.UUID
	Name        string // Unique.
	Description string
	Permissions []*Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission grants an action on a resource, optionally narrowed by scope.
// Its canonical name is "resource:action".
type Permission struct {
	ID          uuid.UUID
	Resource    string
	Action      string
	Scope       string // Empty means unscoped.
	Description string
	CreatedAt   time.Time
}

// Name returns the canonical "resource:action" encoding of the permission.
func (p *Permission) Name() string {
	return p.Resource + ":" + p.Action
}

// Matches reports whether the permission grants the requested
// resource/action/scope triple. Wildcards match any value; a scoped entry
// only matches when the requested scope equals it.
func (p *Permission) Matches(resource, action, scope string) bool {
	if p.Resource != PermissionWildcard && p.Resource != resource {
		return false
	}
	if p.Action != PermissionWildcard && p.Action != action {
		return false
	}
	if p.Scope != "" && scope != "" && p.Scope != scope {
		return false
	}

	return true
}
