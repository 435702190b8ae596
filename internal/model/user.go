package model

import "time"

// User mirrors the 'users' table. Role is the account-level role used by
// the role middleware (TRADER for regular accounts, ADMIN for back
// office); seller/buyer roles are resolved per sale instead.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	DisplayName  string    // users.display_name
	PasswordHash string    // users.password_hash
	Role         string    // users.role (TRADER | ADMIN)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
