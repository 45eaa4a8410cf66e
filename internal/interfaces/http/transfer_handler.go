package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/application/usecase"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// TransferHandler transferencias entre unidades de producción.
type TransferHandler struct {
	uc  *usecase.TransferUseCase
	log *logger.Logger
}

// NewTransferHandler construye el handler inyectando el caso de uso.
func NewTransferHandler(uc *usecase.TransferUseCase, log *logger.Logger) *TransferHandler {
	return &TransferHandler{uc: uc, log: log}
}

// List godoc
// @Summary      Listar transferencias
// @Description  Más recientes primero. start_date y end_date (YYYY-MM-DD) son inclusivas.
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        start_date  query  string  false  "Desde (YYYY-MM-DD)"
// @Param        end_date    query  string  false  "Hasta (YYYY-MM-DD)"
// @Param        limit       query  int     false  "Límite (0 = todas)"
// @Param        offset      query  int     false  "Offset"
// @Success      200  {array}   dto.TransferResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/transfers [get]
func (h *TransferHandler) List(c *fiber.Ctx) error {
	var q dto.ListTransfersQuery
	if ok, err := parseQuery(c, &q); !ok {
		return err
	}
	out, err := h.uc.List(c.Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Create godoc
// @Summary      Registrar transferencia
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Origen, destino, gramos y quilate"
// @Success      201   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/transfers [post]
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.uc.Create(c.Context(), GetUserID(c), GetUsername(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener transferencia
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la transferencia"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [get]
func (h *TransferHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar transferencia
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID de la transferencia"
// @Param        body  body  dto.TransferRequest  true  "Datos completos"
// @Success      200   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [put]
func (h *TransferHandler) Update(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.uc.Update(c.Context(), GetUsername(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar transferencia
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la transferencia"
// @Success      200  {object}  dto.MessageResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [delete]
func (h *TransferHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), GetUsername(c), c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.MessageResponse{Message: "transferencia eliminada"})
}

// Stats godoc
// @Summary      Totales de transferencias
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.TransferStatsResponse
// @Router       /api/transfers/stats [get]
func (h *TransferHandler) Stats(c *fiber.Ctx) error {
	out, err := h.uc.Stats(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// UnitStats godoc
// @Summary      Balance por unidad de producción
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.UnitStatsResponse
// @Router       /api/units/stats [get]
func (h *TransferHandler) UnitStats(c *fiber.Ctx) error {
	out, err := h.uc.UnitStats(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// UnitTransfers godoc
// @Summary      Transferencias de una unidad
// @Description  Transferencias en las que la unidad es origen o destino.
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Param        unit    path   string  true   "Nombre de la unidad"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200  {array}   dto.TransferResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/units/{unit}/transfers [get]
func (h *TransferHandler) UnitTransfers(c *fiber.Ctx) error {
	var page dto.PageRequest
	if ok, err := parseQuery(c, &page); !ok {
		return err
	}
	page.DefaultPage()
	out, err := h.uc.UnitTransfers(c.Context(), c.Params("unit"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}
