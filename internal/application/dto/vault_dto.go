package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateVaultTransactionRequest entrada para registrar un depósito o retiro.
// Amount acepta número o string JSON; el signo y la escala se validan en el servicio.
type CreateVaultTransactionRequest struct {
	Type      string          `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount    decimal.Decimal `json:"amount"`
	Karat     int             `json:"karat" validate:"required,min=1,max=24"`
	Notes     string          `json:"notes" validate:"max=1000"`
	CompanyID *string         `json:"company_id" validate:"omitempty,uuid"`
}

// ListVaultTransactionsQuery filtros del listado. Karat 0 = todos.
type ListVaultTransactionsQuery struct {
	Karat  int    `query:"karat" validate:"min=0,max=24"`
	Type   string `query:"type" validate:"omitempty,oneof=deposit withdrawal"`
	Limit  int    `query:"limit" validate:"min=0,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}

// VaultTransactionResponse salida de una operación del libro.
type VaultTransactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Karat       int             `json:"karat"`
	Notes       string          `json:"notes"`
	UserID      string          `json:"user_id,omitempty"`
	Username    string          `json:"username,omitempty"`
	CompanyID   *string         `json:"company_id,omitempty"`
	CompanyName string          `json:"company_name,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StockBalanceResponse saldo de un quilate.
type StockBalanceResponse struct {
	Karat     int             `json:"karat"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SyncStockResponse resultado de la sincronización.
type SyncStockResponse struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Karat     *int   `json:"karat,omitempty"`
}

// StockDriftResponse diferencia de un quilate (difference = stock - ledger).
type StockDriftResponse struct {
	Karat      int             `json:"karat"`
	Ledger     decimal.Decimal `json:"ledger"`
	Stock      decimal.Decimal `json:"stock"`
	Difference decimal.Decimal `json:"difference"`
}

// VerifyStockResponse informe de verificación.
type VerifyStockResponse struct {
	InSync bool                 `json:"in_sync"`
	Drifts []StockDriftResponse `json:"drifts"`
}
