package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxUnitNameLen longitud máxima del nombre de una unidad de producción.
const MaxUnitNameLen = 50

// Transfer movimiento de oro entre dos unidades internas de producción (fundición, taller,
// caja...). No afecta al stock de la bóveda externa.
type Transfer struct {
	ID        string
	FromUnit  string
	ToUnit    string
	Amount    decimal.Decimal // gramos, siempre > 0
	Karat     int
	Cinsi     string // tipo de pieza o material, opcional
	Notes     string
	UserID    string
	Username  string // solo lectura (join con users)
	CreatedAt time.Time
	UpdatedAt time.Time
}
