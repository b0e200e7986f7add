package entity

import "time"

// Document is the external aggregate a flow routes for signing. Only
// SignatureStatus is mutated by this service; everything else belongs to
// the records-management layer that owns the document lifecycle.
type Document struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	TypeID          string    `json:"type_id,omitempty"`
	SignatureStatus string    `json:"signature_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
