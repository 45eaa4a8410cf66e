package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// VaultHandler libro y stock de la bóveda externa.
type VaultHandler struct {
	svc *vault.Service
	log *logger.Logger
}

// NewVaultHandler construye el handler.
func NewVaultHandler(svc *vault.Service, log *logger.Logger) *VaultHandler {
	return &VaultHandler{svc: svc, log: log}
}

// ListTransactions godoc
// @Summary      Listar operaciones de la bóveda externa
// @Description  Más recientes primero, con el usuario que las registró y la contraparte.
// @Tags         vault
// @Security     Bearer
// @Produce      json
// @Param        karat   query  int     false  "Filtrar por quilate"
// @Param        type    query  string  false  "deposit | withdrawal"
// @Param        limit   query  int     false  "Límite (0 = todas)"
// @Param        offset  query  int     false  "Offset"
// @Success      200     {array}   dto.VaultTransactionResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Router       /api/vault/transactions [get]
func (h *VaultHandler) ListTransactions(c *fiber.Ctx) error {
	var q dto.ListVaultTransactionsQuery
	if ok, err := parseQuery(c, &q); !ok {
		return err
	}
	filter := repository.VaultTransactionFilter{Type: q.Type, Limit: q.Limit, Offset: q.Offset}
	if q.Karat > 0 {
		filter.Karat = &q.Karat
	}
	txns, err := h.svc.ListTransactions(c.Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]dto.VaultTransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toVaultTransactionResponse(t))
	}
	return c.JSON(out)
}

// CreateTransaction godoc
// @Summary      Registrar depósito o retiro
// @Description  Guarda la operación en el libro y ajusta el stock del quilate.
// @Tags         vault
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateVaultTransactionRequest  true  "type, amount, karat, notes, company_id"
// @Success      201   {object}  dto.VaultTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse  "PROJECTION_DRIFT: libro guardado, stock pendiente de sincronizar"
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/vault/transactions [post]
func (h *VaultHandler) CreateTransaction(c *fiber.Ctx) error {
	var in dto.CreateVaultTransactionRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	txn, err := h.svc.CreateTransaction(c.Context(), actorFrom(c), vault.CreateTransactionInput{
		Type:      in.Type,
		Amount:    in.Amount,
		Karat:     in.Karat,
		Notes:     in.Notes,
		CompanyID: in.CompanyID,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toVaultTransactionResponse(txn))
}

// DeleteTransaction godoc
// @Summary      Eliminar operación
// @Description  Borra la operación del libro y revierte su efecto en el stock.
// @Tags         vault
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la operación"
// @Success      200  {object}  dto.MessageResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/vault/transactions/{id} [delete]
func (h *VaultHandler) DeleteTransaction(c *fiber.Ctx) error {
	if err := h.svc.DeleteTransaction(c.Context(), actorFrom(c), c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.MessageResponse{Message: "operación eliminada"})
}

// ListStock godoc
// @Summary      Stock por quilate
// @Tags         vault
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.StockBalanceResponse
// @Router       /api/vault/stock [get]
func (h *VaultHandler) ListStock(c *fiber.Ctx) error {
	rows, err := h.svc.ListStock(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]dto.StockBalanceResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.StockBalanceResponse{Karat: r.Karat, Amount: r.Amount, UpdatedAt: r.UpdatedAt})
	}
	return c.JSON(out)
}

// SyncStock godoc
// @Summary      Sincronizar stock desde el libro (solo admin)
// @Tags         vault
// @Security     Bearer
// @Produce      json
// @Param        karat  query  int  false  "Solo este quilate"
// @Success      200    {object}  dto.SyncStockResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Failure      409    {object}  dto.ErrorResponse  "otra sincronización en curso"
// @Router       /api/vault/stock/sync [post]
func (h *VaultHandler) SyncStock(c *fiber.Ctx) error {
	var karat *int
	if raw := c.Query("karat"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "karat debe ser un entero"})
		}
		karat = &k
	}
	res, err := h.svc.SyncStock(c.Context(), actorFrom(c), karat)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SyncStockResponse{
		Message:   "stock sincronizado",
		Processed: res.Processed,
		Karat:     res.Karat,
	})
}

// VerifyStock godoc
// @Summary      Verificar stock contra el libro (solo admin)
// @Description  Solo lectura. Lista los quilates cuyo stock no coincide con la suma del libro.
// @Tags         vault
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.VerifyStockResponse
// @Router       /api/vault/stock/verify [get]
func (h *VaultHandler) VerifyStock(c *fiber.Ctx) error {
	drifts, err := h.svc.VerifyStock(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := dto.VerifyStockResponse{InSync: len(drifts) == 0, Drifts: make([]dto.StockDriftResponse, 0, len(drifts))}
	for _, d := range drifts {
		out.Drifts = append(out.Drifts, dto.StockDriftResponse{
			Karat: d.Karat, Ledger: d.Ledger, Stock: d.Stock, Difference: d.Difference,
		})
	}
	return c.JSON(out)
}

// StockReport godoc
// @Summary      Reporte PDF del stock
// @Tags         vault
// @Security     Bearer
// @Produce      application/pdf
// @Success      200  {file}  binary
// @Router       /api/vault/stock/report [get]
func (h *VaultHandler) StockReport(c *fiber.Ctx) error {
	pdf, err := h.svc.StockReport(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="stock-boveda.pdf"`)
	return c.Send(pdf)
}

func toVaultTransactionResponse(t *entity.VaultTransaction) dto.VaultTransactionResponse {
	return dto.VaultTransactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Karat:       t.Karat,
		Notes:       t.Notes,
		UserID:      t.UserID,
		Username:    t.Username,
		CompanyID:   t.CompanyID,
		CompanyName: t.CompanyName,
		CreatedAt:   t.CreatedAt,
	}
}
