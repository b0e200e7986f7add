package entity

import "time"

// User is an identity known to the platform. Signer lists are validated
// against this store before a flow is persisted.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
