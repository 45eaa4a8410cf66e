package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ vault.SessionTxRunner = (*TxRunner)(nil)

// beginner *pgxpool.Pool o *pgxpool.Conn.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
	db   beginner
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool, db: pool}
}

// Run inicia una transacción, ejecuta fn con el libro y el stock atados a la tx y hace
// Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewVaultTransactionRepository(tx), NewStockBalanceRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// WithSharedProjection reserva una conexión, toma el advisory lock de la proyección en
// modo compartido a nivel de sesión y ejecuta fn con un runner fijado a esa conexión.
// Las transacciones de fn piden el mismo lock compartido y se conceden sin esperar a un
// lock exclusivo encolado, porque la sesión ya lo tiene.
func (r *TxRunner) WithSharedProjection(ctx context.Context, fn func(tx vault.TxRunner) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return storageErr("acquire connection", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock_shared($1)`, stockLockKey); err != nil {
		return storageErr("lock stock session", err)
	}
	defer func() {
		unlockCtx := context.WithoutCancel(ctx)
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock_shared($1)`, stockLockKey); err != nil {
			// Cerrar la sesión libera el lock; el pool descarta la conexión cerrada.
			_ = conn.Conn().Close(unlockCtx)
		}
	}()

	return fn(&TxRunner{pool: r.pool, db: conn})
}
