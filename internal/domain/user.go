package domain

import (
	"time"

	"github.com/acbops/tracker"
)

// User is a tracker account. PasswordHash never leaves the process.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	DisplayName  string       `json:"displayName"`
	Role         tracker.Role `json:"role"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
