package erpapi

import (
	"time"

	"github.com/sitelink-erp/sitelink/internal/rbac"
)

// User is the upstream identity record. Immutable for the lifetime of a
// session except for the self-service profile fields.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      rbac.Role `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the self-service profile fields a user may change.
type ProfileUpdate struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}
