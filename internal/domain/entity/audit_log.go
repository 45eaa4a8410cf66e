package entity

import "time"

// AuditLog registro de actividad del sistema (quién hizo qué).
type AuditLog struct {
	ID         string
	Username   string
	Action     string
	EntityType string
	EntityName string
	Details    string
	CreatedAt  time.Time
}
