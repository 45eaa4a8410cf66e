// Package audit registra y consulta la actividad de los operadores (system logs).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

// Entry datos de un registro de actividad: quién, qué acción y un detalle libre.
type Entry struct {
	Username   string
	Action     string
	EntityType string
	EntityName string
	Details    string
}

// Paginación del listado.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Service escribe y lista el registro de actividad.
type Service struct {
	repo repository.AuditLogRepository
	now  func() time.Time
}

// NewService construye el servicio de auditoría.
func NewService(repo repository.AuditLogRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record persiste una entrada. Action es obligatoria.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.Action == "" {
		return fmt.Errorf("%w: acción vacía", domain.ErrInvalidInput)
	}
	return s.repo.Create(ctx, &entity.AuditLog{
		ID:         uuid.New().String(),
		Username:   e.Username,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityName: e.EntityName,
		Details:    e.Details,
		CreatedAt:  s.now(),
	})
}

// Page resultado paginado del listado.
type Page struct {
	Logs  []*entity.AuditLog
	Page  int
	Limit int
	Total int
}

// Pages número total de páginas.
func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// List devuelve los registros más recientes primero. page empieza en 1.
func (s *Service) List(ctx context.Context, search string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	logs, total, err := s.repo.List(ctx, repository.AuditLogFilter{
		Search: search,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &Page{Logs: logs, Page: page, Limit: limit, Total: total}, nil
}
