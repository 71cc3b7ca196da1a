package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles understood by the enrollment API.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleProfessor UserRole = "profesor"
	RoleStudent   UserRole = "estudiante"
)

// Principal is the authenticated actor driving an operation. Tokens are issued
// by the identity service; this API only consumes the validated id and role.
type Principal struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// AccessClaims is the JWT payload carried by access tokens. The subject claim
// holds the user id.
type AccessClaims struct {
	Role UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts claims into the principal consumed by the domain layer.
func (c *AccessClaims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role}
}
