package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de operación en la bóveda externa (sentido del oro respecto a la bóveda).
const (
	VaultDeposit    = "deposit"
	VaultWithdrawal = "withdrawal"
)

// Rango de quilataje aceptado.
const (
	MinKarat = 1
	MaxKarat = 24
)

// AmountScale decimales con los que se guardan los gramos (NUMERIC(14,2)).
const AmountScale = 2

// VaultTransaction operación del libro de la bóveda externa. Inmutable: solo se crea o se borra.
type VaultTransaction struct {
	ID          string
	Type        string
	Amount      decimal.Decimal // gramos, siempre > 0
	Karat       int
	Notes       string
	UserID      string
	Username    string  // solo lectura (join con users)
	CompanyID   *string // contraparte opcional, informativa
	CompanyName string  // solo lectura (join con companies)
	CreatedAt   time.Time
}

// IsValidVaultType indica si t es deposit o withdrawal.
func IsValidVaultType(t string) bool {
	return t == VaultDeposit || t == VaultWithdrawal
}

// IsValidKarat indica si k está dentro del rango de quilataje.
func IsValidKarat(k int) bool {
	return k >= MinKarat && k <= MaxKarat
}
