package entity

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleLandscaper Role = "landscaper"
	RoleClient     Role = "client"
)

// Caller is the authenticated user behind a request, taken from the token subject.
type Caller struct {
	UserID uuid.UUID
}

type Landscaper struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}
