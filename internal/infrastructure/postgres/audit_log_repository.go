package postgres

import (
	"context"
	"strconv"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo registro de actividad sobre PostgreSQL.
type AuditLogRepo struct {
	q Querier
}

// NewAuditLogRepository construye el adaptador del registro de actividad.
func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

// Create inserta una entrada.
func (r *AuditLogRepo) Create(ctx context.Context, e *entity.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, username, action, entity_type, entity_name, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.q.Exec(ctx, query,
		e.ID, e.Username, e.Action, e.EntityType, e.EntityName, e.Details, e.CreatedAt,
	); err != nil {
		return storageErr("insert audit log", err)
	}
	return nil
}

// List más recientes primero. Search hace ILIKE sobre usuario, acción y detalle.
// Devuelve también el total de coincidencias para la paginación.
func (r *AuditLogRepo) List(ctx context.Context, f repository.AuditLogFilter) ([]*entity.AuditLog, int, error) {
	where := ""
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = ` WHERE username ILIKE $1 OR action ILIKE $1 OR details ILIKE $1`
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count audit logs", err)
	}

	query := `
		SELECT id, username, action, entity_type, entity_name, details, created_at
		FROM audit_logs` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storageErr("list audit logs", err)
	}
	defer rows.Close()

	var list []*entity.AuditLog
	for rows.Next() {
		var e entity.AuditLog
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.EntityType, &e.EntityName, &e.Details, &e.CreatedAt); err != nil {
			return nil, 0, storageErr("scan audit log", err)
		}
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list audit logs", err)
	}
	return list, total, nil
}
