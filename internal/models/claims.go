package models

import (
	"github.com/dgrijalva/jwt-go"
)

// Roles carried in staff tokens
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Claims for JWT authentication. Tokens are issued by the external
// auth service; this service only verifies them.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}
