package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// VaultTransactionFilter filtros del listado para pantalla (orden created_at DESC).
type VaultTransactionFilter struct {
	Karat  *int
	Type   string
	Limit  int // 0 = sin límite
	Offset int
}

// LedgerCursor posición en el recorrido ascendente del libro (keyset: created_at, id).
type LedgerCursor struct {
	CreatedAt time.Time
	ID        string
}

// KaratSum suma firmada del libro para un quilate.
type KaratSum struct {
	Karat  int
	Amount decimal.Decimal
}

// VaultTransactionRepository puerto del libro de la bóveda externa (fuente de verdad).
// No toca el stock: eso es responsabilidad del motor de conciliación.
type VaultTransactionRepository interface {
	Create(ctx context.Context, txn *entity.VaultTransaction) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.VaultTransaction, error)
	// Delete borra la fila y la devuelve; domain.ErrNotFound si no existe.
	Delete(ctx context.Context, id string) (*entity.VaultTransaction, error)
	List(ctx context.Context, filter VaultTransactionFilter) ([]*entity.VaultTransaction, error)
	// ListAscending recorre el libro por (created_at, id) ascendente a partir de after (exclusivo).
	// karat nil = todos los quilates.
	ListAscending(ctx context.Context, karat *int, after *LedgerCursor, limit int) ([]*entity.VaultTransaction, error)
	// SumByKarat devuelve la suma firmada por quilate, ordenada por quilate.
	SumByKarat(ctx context.Context) ([]KaratSum, error)
}
