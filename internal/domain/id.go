package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for application-owned entities. Entry IDs
// are assigned at submission and never reused.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
