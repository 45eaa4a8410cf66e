package dto

import "time"

// AuditLogQuery búsqueda paginada del registro de actividad. Page empieza en 1.
type AuditLogQuery struct {
	Page   int    `query:"page" validate:"min=0"`
	Limit  int    `query:"limit" validate:"min=0,max=200"`
	Search string `query:"search" validate:"max=200"`
}

// AuditLogResponse una entrada del registro.
type AuditLogResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityName string    `json:"entity_name"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditLogListResponse página de registros.
type AuditLogListResponse struct {
	Items []AuditLogResponse `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
	Pages int                `json:"pages"`
}
