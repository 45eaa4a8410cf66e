package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	domvault "github.com/jhoicas/goldvault-api/internal/domain/vault"
)

var (
	_ repository.VaultTransactionRepository = (*LedgerRepo)(nil)
	_ repository.StockBalanceRepository     = (*StockRepo)(nil)
)

// LedgerRepo libro de la bóveda en memoria.
type LedgerRepo struct {
	s    *Store
	inTx bool
}

// Create guarda una copia de la operación.
func (r *LedgerRepo) Create(_ context.Context, txn *entity.VaultTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	var err error
	r.s.locked(r.inTx, func() {
		if _, ok := r.s.txns[txn.ID]; ok {
			err = fmt.Errorf("create vault transaction: %w", domain.ErrDuplicate)
			return
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = r.s.now()
		}
		r.s.txns[txn.ID] = *txn
	})
	return err
}

// GetByID devuelve (nil, nil) si no existe.
func (r *LedgerRepo) GetByID(_ context.Context, id string) (*entity.VaultTransaction, error) {
	var out *entity.VaultTransaction
	r.s.locked(r.inTx, func() {
		if t, ok := r.s.txns[id]; ok {
			out = r.s.hydrate(t)
		}
	})
	return out, nil
}

// Delete borra y devuelve la fila.
func (r *LedgerRepo) Delete(_ context.Context, id string) (*entity.VaultTransaction, error) {
	var out *entity.VaultTransaction
	r.s.locked(r.inTx, func() {
		if t, ok := r.s.txns[id]; ok {
			out = r.s.hydrate(t)
			delete(r.s.txns, id)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("delete vault transaction %s: %w", id, domain.ErrNotFound)
	}
	return out, nil
}

// List más recientes primero, con filtros y paginación.
func (r *LedgerRepo) List(_ context.Context, f repository.VaultTransactionFilter) ([]*entity.VaultTransaction, error) {
	var list []*entity.VaultTransaction
	r.s.locked(r.inTx, func() {
		for _, t := range r.s.txns {
			if f.Karat != nil && t.Karat != *f.Karat {
				continue
			}
			if f.Type != "" && t.Type != f.Type {
				continue
			}
			list = append(list, r.s.hydrate(t))
		}
	})
	sort.Slice(list, func(i, j int) bool { return after(list[i], list[j]) })

	if f.Offset > 0 {
		if f.Offset >= len(list) {
			return nil, nil
		}
		list = list[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list, nil
}

// ListAscending recorrido por (created_at, id) ascendente a partir del cursor.
func (r *LedgerRepo) ListAscending(_ context.Context, karat *int, cur *repository.LedgerCursor, limit int) ([]*entity.VaultTransaction, error) {
	var list []*entity.VaultTransaction
	r.s.locked(r.inTx, func() {
		for _, t := range r.s.txns {
			if karat != nil && t.Karat != *karat {
				continue
			}
			if cur != nil && !afterCursor(t, cur) {
				continue
			}
			list = append(list, r.s.hydrate(t))
		}
	})
	sort.Slice(list, func(i, j int) bool { return after(list[j], list[i]) })
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// SumByKarat suma firmada por quilate, ordenada por quilate.
func (r *LedgerRepo) SumByKarat(_ context.Context) ([]repository.KaratSum, error) {
	var all []*entity.VaultTransaction
	r.s.locked(r.inTx, func() {
		for _, t := range r.s.txns {
			t := t
			all = append(all, &t)
		}
	})
	sums := domvault.SumByKarat(all)
	out := make([]repository.KaratSum, 0, len(sums))
	for k, v := range sums {
		out = append(out, repository.KaratSum{Karat: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Karat < out[j].Karat })
	return out, nil
}

// after: a va después que b en orden (created_at, id).
func after(a, b *entity.VaultTransaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func afterCursor(t entity.VaultTransaction, cur *repository.LedgerCursor) bool {
	if !t.CreatedAt.Equal(cur.CreatedAt) {
		return t.CreatedAt.After(cur.CreatedAt)
	}
	return t.ID > cur.ID
}

// hydrate copia la fila y completa los campos de solo lectura (joins).
func (s *Store) hydrate(t entity.VaultTransaction) *entity.VaultTransaction {
	if u, ok := s.users[t.UserID]; ok {
		t.Username = u.Username
	}
	t.CompanyName = ""
	if t.CompanyID != nil {
		id := *t.CompanyID
		t.CompanyID = &id
		if c, ok := s.companies[id]; ok {
			t.CompanyName = c.Name
		}
	}
	return &t
}

// StockRepo stock por quilate en memoria. Las transacciones ya están serializadas por el
// mutex del Store, así que los locks de proyección no hacen nada.
type StockRepo struct {
	s    *Store
	inTx bool
}

// Adjust insert-or-add.
func (r *StockRepo) Adjust(_ context.Context, karat int, delta decimal.Decimal) (*entity.StockBalance, error) {
	var out entity.StockBalance
	r.s.locked(r.inTx, func() {
		row := r.s.stock[karat]
		row.Karat = karat
		row.Amount = row.Amount.Add(delta)
		row.UpdatedAt = r.s.now()
		r.s.stock[karat] = row
		out = row
	})
	return &out, nil
}

// ResetAll pone todos los saldos a cero sin borrar filas.
func (r *StockRepo) ResetAll(_ context.Context) error {
	r.s.locked(r.inTx, func() {
		now := r.s.now()
		for k, row := range r.s.stock {
			row.Amount = decimal.Zero
			row.UpdatedAt = now
			r.s.stock[k] = row
		}
	})
	return nil
}

// ResetKarat pone a cero un quilate si existe.
func (r *StockRepo) ResetKarat(_ context.Context, karat int) error {
	r.s.locked(r.inTx, func() {
		if row, ok := r.s.stock[karat]; ok {
			row.Amount = decimal.Zero
			row.UpdatedAt = r.s.now()
			r.s.stock[karat] = row
		}
	})
	return nil
}

// List ordenado por quilate.
func (r *StockRepo) List(_ context.Context) ([]*entity.StockBalance, error) {
	var list []*entity.StockBalance
	r.s.locked(r.inTx, func() {
		for _, row := range r.s.stock {
			row := row
			list = append(list, &row)
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Karat < list[j].Karat })
	return list, nil
}

// LockShared no-op.
func (r *StockRepo) LockShared(context.Context) error { return nil }

// LockExclusive no-op.
func (r *StockRepo) LockExclusive(context.Context) error { return nil }
