package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// AuditHandler expone el registro de actividad (solo admin).
type AuditHandler struct {
	svc *audit.Service
	log *logger.Logger
}

// NewAuditHandler construye el handler.
func NewAuditHandler(svc *audit.Service, log *logger.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

// List godoc
// @Summary      Registro de actividad
// @Tags         logs
// @Security     Bearer
// @Produce      json
// @Param        page    query  int     false  "Página (desde 1)"  default(1)
// @Param        limit   query  int     false  "Límite"            default(50)
// @Param        search  query  string  false  "Buscar en usuario, acción o detalle"
// @Success      200     {object}  dto.AuditLogListResponse
// @Failure      403     {object}  dto.ErrorResponse
// @Router       /api/logs [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	var q dto.AuditLogQuery
	if ok, err := parseQuery(c, &q); !ok {
		return err
	}
	page, err := h.svc.List(c.Context(), q.Search, q.Page, q.Limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]dto.AuditLogResponse, 0, len(page.Logs))
	for _, e := range page.Logs {
		items = append(items, dto.AuditLogResponse{
			ID:         e.ID,
			Username:   e.Username,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityName: e.EntityName,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return c.JSON(dto.AuditLogListResponse{
		Items: items,
		Page:  page.Page,
		Limit: page.Limit,
		Total: page.Total,
		Pages: page.Pages(),
	})
}
