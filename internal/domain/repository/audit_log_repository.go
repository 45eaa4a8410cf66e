package repository

import (
	"context"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// AuditLogFilter búsqueda paginada en el registro de actividad.
// Search filtra por coincidencia parcial en usuario, acción o detalle.
type AuditLogFilter struct {
	Search string
	Limit  int
	Offset int
}

// AuditLogRepository puerto de persistencia del registro de actividad.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]*entity.AuditLog, int, error)
}
