package activation

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RoleNameUser is the fallback role assigned when no mapping rule matches
	RoleNameUser = "user"
	// RoleNamePending marks accounts waiting for manual approval
	RoleNamePending = "pending"
)

// AccountState is the activation state of a user
type AccountState = string

const (
	StateUnverified AccountState = "unverified"
	StatePending    AccountState = "pending"
	StateVerified   AccountState = "verified"
)

// User is the user model. Only the activation fields are owned here.
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email            string     `bun:"email,notnull,unique:provider_email" json:"email,omitempty"`
	Provider         string     `bun:"provider,notnull,unique:provider_email" json:"provider,omitempty"`
	EmailVerified    bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	ActivationDigest string     `bun:"activation_digest,nullzero" json:"-"`
	ActivationSentAt *time.Time `bun:"activation_sent_at,nullzero" json:"activation_sent_at,omitempty"`
	RoleID           *uuid.UUID `bun:"role_id,type:uuid" json:"role_id,omitempty"`
	Role             *Role      `bun:"-" json:"role,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// State reports where the user is in the activation lifecycle.
func (u *User) State() AccountState {
	if u == nil || !u.EmailVerified {
		return StateUnverified
	}
	if u.Role.IsPending() {
		return StatePending
	}
	return StateVerified
}

// Role is the role model, roles are scoped by provider
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique:provider_name" json:"name,omitempty"`
	Provider      string     `bun:"provider,notnull,unique:provider_name" json:"provider,omitempty"`
	Priority      int        `bun:"priority,notnull,default:0" json:"priority"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsPending reports whether the role is the pending approval role
func (r *Role) IsPending() bool {
	return r != nil && r.Name == RoleNamePending
}
