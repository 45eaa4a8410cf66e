package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// TransferFilter filtros del listado de transferencias (orden created_at DESC).
// Since/Until acotan created_at en [Since, Until).
type TransferFilter struct {
	Since  *time.Time
	Until  *time.Time
	Unit   string // origen o destino
	Limit  int    // 0 = sin límite
	Offset int
}

// TransferTotals totales globales y desde un instante (normalmente el inicio del día).
type TransferTotals struct {
	Count       int
	Amount      decimal.Decimal
	SinceCount  int
	SinceAmount decimal.Decimal
}

// UnitTotals entradas y salidas acumuladas de una unidad de producción.
type UnitTotals struct {
	Unit          string
	TotalIn       decimal.Decimal
	TotalOut      decimal.Decimal
	TransferCount int
}

// TransferRepository puerto de persistencia de transferencias entre unidades.
type TransferRepository interface {
	Create(ctx context.Context, t *entity.Transfer) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Transfer, error)
	// Update reemplaza los campos editables; domain.ErrNotFound si no existe.
	Update(ctx context.Context, t *entity.Transfer) error
	// Delete domain.ErrNotFound si no existe.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TransferFilter) ([]*entity.Transfer, error)
	Totals(ctx context.Context, since time.Time) (*TransferTotals, error)
	// UnitTotals una fila por unidad que aparece como origen o destino, ordenadas por nombre.
	UnitTotals(ctx context.Context) ([]UnitTotals, error)
}
