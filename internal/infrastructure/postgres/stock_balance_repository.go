package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.StockBalanceRepository = (*StockBalanceRepo)(nil)

// stockLockKey clave del advisory lock de la proyección de stock.
const stockLockKey int64 = 0x676f6c64 // "gold"

// StockBalanceRepo stock por quilate sobre PostgreSQL (usable con pool o tx).
// Los locks solo tienen sentido con un Querier transaccional.
type StockBalanceRepo struct {
	q Querier
}

// NewStockBalanceRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockBalanceRepository(q Querier) *StockBalanceRepo {
	return &StockBalanceRepo{q: q}
}

// Adjust suma delta al saldo del quilate en una sola sentencia (insert-or-add).
func (r *StockBalanceRepo) Adjust(ctx context.Context, karat int, delta decimal.Decimal) (*entity.StockBalance, error) {
	query := `
		INSERT INTO vault_stock (karat, amount, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (karat)
		DO UPDATE SET amount = vault_stock.amount + EXCLUDED.amount, updated_at = now()
		RETURNING karat, amount, updated_at`
	var b entity.StockBalance
	if err := r.q.QueryRow(ctx, query, karat, delta).Scan(&b.Karat, &b.Amount, &b.UpdatedAt); err != nil {
		return nil, storageErr("adjust stock", err)
	}
	return &b, nil
}

// ResetAll pone todos los saldos a cero. Las filas se conservan.
func (r *StockBalanceRepo) ResetAll(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `UPDATE vault_stock SET amount = 0, updated_at = now()`); err != nil {
		return storageErr("reset stock", err)
	}
	return nil
}

// ResetKarat pone a cero un solo quilate.
func (r *StockBalanceRepo) ResetKarat(ctx context.Context, karat int) error {
	if _, err := r.q.Exec(ctx, `UPDATE vault_stock SET amount = 0, updated_at = now() WHERE karat = $1`, karat); err != nil {
		return storageErr("reset stock karat", err)
	}
	return nil
}

// List saldos ordenados por quilate.
func (r *StockBalanceRepo) List(ctx context.Context) ([]*entity.StockBalance, error) {
	rows, err := r.q.Query(ctx, `SELECT karat, amount, updated_at FROM vault_stock ORDER BY karat`)
	if err != nil {
		return nil, storageErr("list stock", err)
	}
	defer rows.Close()

	var list []*entity.StockBalance
	for rows.Next() {
		var b entity.StockBalance
		if err := rows.Scan(&b.Karat, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, storageErr("scan stock", err)
		}
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list stock", err)
	}
	return list, nil
}

// LockShared advisory lock compartido hasta el fin de la transacción.
func (r *StockBalanceRepo) LockShared(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, stockLockKey); err != nil {
		return storageErr("lock stock shared", err)
	}
	return nil
}

// LockExclusive advisory lock exclusivo hasta el fin de la transacción.
func (r *StockBalanceRepo) LockExclusive(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, stockLockKey); err != nil {
		return storageErr("lock stock exclusive", err)
	}
	return nil
}
