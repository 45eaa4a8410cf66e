package vault

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	domvault "github.com/jhoicas/goldvault-api/internal/domain/vault"
)

// DefaultSyncBatchSize filas del libro leídas por vuelta durante la resincronización.
const DefaultSyncBatchSize = 500

// Reconciler traduce mutaciones del libro en ajustes del stock por quilate. Es el único
// componente que escribe en el stock: invariante stock[k] = Σ firmada del libro para k.
//
// Trabaja con repositorios ya atados a una transacción; el llamador decide el alcance
// transaccional (ver Service y Options.AtomicWrites).
type Reconciler struct {
	batchSize int
}

// NewReconciler construye el motor. batchSize <= 0 usa DefaultSyncBatchSize.
func NewReconciler(batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = DefaultSyncBatchSize
	}
	return &Reconciler{batchSize: batchSize}
}

// InsertLedger guarda la operación en el libro. No toca el stock.
func (r *Reconciler) InsertLedger(
	ctx context.Context,
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
	txn *entity.VaultTransaction,
) error {
	if err := stock.LockShared(ctx); err != nil {
		return err
	}
	return ledger.Create(ctx, txn)
}

// RemoveLedger borra la operación del libro y la devuelve para calcular el ajuste inverso.
func (r *Reconciler) RemoveLedger(
	ctx context.Context,
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
	id string,
) (*entity.VaultTransaction, error) {
	if err := stock.LockShared(ctx); err != nil {
		return nil, err
	}
	return ledger.Delete(ctx, id)
}

// Project aplica delta al stock del quilate (insert-or-add atómico).
func (r *Reconciler) Project(
	ctx context.Context,
	stock repository.StockBalanceRepository,
	karat int,
	delta decimal.Decimal,
) (*entity.StockBalance, error) {
	if err := stock.LockShared(ctx); err != nil {
		return nil, err
	}
	return stock.Adjust(ctx, karat, delta)
}

// ApplyCreate: libro primero, después el ajuste +amount / -amount.
func (r *Reconciler) ApplyCreate(
	ctx context.Context,
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
	txn *entity.VaultTransaction,
) (*entity.StockBalance, error) {
	if err := r.InsertLedger(ctx, ledger, stock, txn); err != nil {
		return nil, err
	}
	return r.Project(ctx, stock, txn.Karat, domvault.Delta(txn.Type, txn.Amount))
}

// ApplyDelete: borra del libro y aplica el ajuste inverso al de la creación.
func (r *Reconciler) ApplyDelete(
	ctx context.Context,
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
	id string,
) (*entity.VaultTransaction, *entity.StockBalance, error) {
	deleted, err := r.RemoveLedger(ctx, ledger, stock, id)
	if err != nil {
		return nil, nil, err
	}
	balance, err := r.Project(ctx, stock, deleted.Karat, domvault.ReverseDelta(deleted.Type, deleted.Amount))
	if err != nil {
		return deleted, nil, err
	}
	return deleted, balance, nil
}

// Resync recalcula el stock desde el libro: bloquea el stock en exclusiva, lo pone a cero
// (todos los quilates o solo karat) y recorre el libro en orden de creación por lotes,
// sumando cada lote por quilate. Devuelve cuántas operaciones se procesaron.
func (r *Reconciler) Resync(
	ctx context.Context,
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
	karat *int,
) (int, error) {
	if err := stock.LockExclusive(ctx); err != nil {
		return 0, err
	}
	if karat == nil {
		if err := stock.ResetAll(ctx); err != nil {
			return 0, err
		}
	} else if err := stock.ResetKarat(ctx, *karat); err != nil {
		return 0, err
	}

	var after *repository.LedgerCursor
	processed := 0
	for {
		batch, err := ledger.ListAscending(ctx, karat, after, r.batchSize)
		if err != nil {
			return processed, err
		}
		if len(batch) == 0 {
			break
		}

		sums := domvault.SumByKarat(batch)
		karats := make([]int, 0, len(sums))
		for k := range sums {
			karats = append(karats, k)
		}
		sort.Ints(karats)
		for _, k := range karats {
			if _, err := stock.Adjust(ctx, k, sums[k]); err != nil {
				return processed, fmt.Errorf("resync quilate %d: %w", k, err)
			}
		}

		processed += len(batch)
		last := batch[len(batch)-1]
		after = &repository.LedgerCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(batch) < r.batchSize {
			break
		}
	}
	return processed, nil
}
