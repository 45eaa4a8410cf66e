package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockBalance saldo materializado de la bóveda por quilate. Es estado derivado del libro:
// Amount = Σ depósitos − Σ retiros de ese quilate. Puede ser negativo.
type StockBalance struct {
	Karat     int
	Amount    decimal.Decimal
	UpdatedAt time.Time
}
