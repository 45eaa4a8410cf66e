package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// StockBalanceRepository puerto de la proyección de stock por quilate.
// Adjust es la única escritura aritmética: suma delta de forma atómica (insert-or-add),
// nunca sobrescribe. Las filas nunca se borran, solo se ponen a cero.
type StockBalanceRepository interface {
	Adjust(ctx context.Context, karat int, delta decimal.Decimal) (*entity.StockBalance, error)
	ResetAll(ctx context.Context) error
	ResetKarat(ctx context.Context, karat int) error
	List(ctx context.Context) ([]*entity.StockBalance, error)
	// LockShared lo toman las mutaciones del libro; LockExclusive la resincronización.
	// Ambos duran hasta el fin de la transacción en curso.
	LockShared(ctx context.Context) error
	LockExclusive(ctx context.Context) error
}
