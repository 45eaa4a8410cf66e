package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest alta o edición completa de una transferencia entre unidades.
type TransferRequest struct {
	FromUnit string          `json:"from_unit" validate:"required,max=50"`
	ToUnit   string          `json:"to_unit" validate:"required,max=50,nefield=FromUnit"`
	Amount   decimal.Decimal `json:"amount"`
	Karat    int             `json:"karat" validate:"required,min=1,max=24"`
	Cinsi    string          `json:"cinsi" validate:"max=100"`
	Notes    string          `json:"notes" validate:"max=1000"`
}

// ListTransfersQuery filtros del listado. Fechas en formato YYYY-MM-DD, ambas inclusivas.
type ListTransfersQuery struct {
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `query:"limit" validate:"min=0,max=500"`
	Offset    int    `query:"offset" validate:"min=0"`
}

// TransferResponse salida de una transferencia.
type TransferResponse struct {
	ID        string          `json:"id"`
	FromUnit  string          `json:"from_unit"`
	ToUnit    string          `json:"to_unit"`
	Amount    decimal.Decimal `json:"amount"`
	Karat     int             `json:"karat"`
	Cinsi     string          `json:"cinsi,omitempty"`
	Notes     string          `json:"notes"`
	UserID    string          `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransferStatsResponse totales globales y del día.
type TransferStatsResponse struct {
	TotalTransfers int             `json:"total_transfers"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TodayTransfers int             `json:"today_transfers"`
	TodayAmount    decimal.Decimal `json:"today_amount"`
}

// UnitStatsResponse balance de una unidad de producción (net = in - out).
type UnitStatsResponse struct {
	Unit          string          `json:"unit"`
	TotalIn       decimal.Decimal `json:"total_in"`
	TotalOut      decimal.Decimal `json:"total_out"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	TransferCount int             `json:"transfer_count"`
}
