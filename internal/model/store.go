package model

import "time"

// Store is an optional storefront a seller can group listings under.
type Store struct {
	ID          uint64    // stores.id
	OwnerID     uint64    // stores.owner_id
	Name        string    // stores.name
	Description string    // stores.description
	CreatedAt   time.Time // stores.created_at
	UpdatedAt   time.Time // stores.updated_at
}
