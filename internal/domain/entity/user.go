package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User operador del sistema. Se autentica con username/password.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Role         string // admin, user
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsValidRole indica si r es un rol conocido.
func IsValidRole(r string) bool {
	return r == RoleAdmin || r == RoleUser
}
