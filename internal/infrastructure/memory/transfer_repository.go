package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo transferencias entre unidades en memoria.
type TransferRepo struct{ s *Store }

func (r *TransferRepo) Create(_ context.Context, t *entity.Transfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transfers[t.ID]; ok {
		return fmt.Errorf("create transfer: %w", domain.ErrDuplicate)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.s.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	r.s.transfers[t.ID] = *t
	return nil
}

func (r *TransferRepo) GetByID(_ context.Context, id string) (*entity.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transfers[id]
	if !ok {
		return nil, nil
	}
	return r.s.hydrateTransfer(t), nil
}

// Update reemplaza los campos editables; el operador y la fecha de alta no cambian.
func (r *TransferRepo) Update(_ context.Context, t *entity.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.transfers[t.ID]
	if !ok {
		return fmt.Errorf("update transfer %s: %w", t.ID, domain.ErrNotFound)
	}
	existing.FromUnit = t.FromUnit
	existing.ToUnit = t.ToUnit
	existing.Amount = t.Amount
	existing.Karat = t.Karat
	existing.Cinsi = t.Cinsi
	existing.Notes = t.Notes
	existing.UpdatedAt = t.UpdatedAt
	r.s.transfers[t.ID] = existing
	return nil
}

func (r *TransferRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transfers[id]; !ok {
		return fmt.Errorf("delete transfer %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.transfers, id)
	return nil
}

// List más recientes primero.
func (r *TransferRepo) List(_ context.Context, f repository.TransferFilter) ([]*entity.Transfer, error) {
	r.s.mu.Lock()
	var list []*entity.Transfer
	for _, t := range r.s.transfers {
		if f.Since != nil && t.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !t.CreatedAt.Before(*f.Until) {
			continue
		}
		if f.Unit != "" && t.FromUnit != f.Unit && t.ToUnit != f.Unit {
			continue
		}
		list = append(list, r.s.hydrateTransfer(t))
	}
	r.s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
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

func (r *TransferRepo) Totals(_ context.Context, since time.Time) (*repository.TransferTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := &repository.TransferTotals{Amount: decimal.Zero, SinceAmount: decimal.Zero}
	for _, t := range r.s.transfers {
		out.Count++
		out.Amount = out.Amount.Add(t.Amount)
		if !t.CreatedAt.Before(since) {
			out.SinceCount++
			out.SinceAmount = out.SinceAmount.Add(t.Amount)
		}
	}
	return out, nil
}

func (r *TransferRepo) UnitTotals(_ context.Context) ([]repository.UnitTotals, error) {
	r.s.mu.Lock()
	byUnit := map[string]*repository.UnitTotals{}
	get := func(unit string) *repository.UnitTotals {
		u, ok := byUnit[unit]
		if !ok {
			u = &repository.UnitTotals{Unit: unit, TotalIn: decimal.Zero, TotalOut: decimal.Zero}
			byUnit[unit] = u
		}
		return u
	}
	for _, t := range r.s.transfers {
		out := get(t.FromUnit)
		out.TotalOut = out.TotalOut.Add(t.Amount)
		out.TransferCount++
		in := get(t.ToUnit)
		in.TotalIn = in.TotalIn.Add(t.Amount)
		in.TransferCount++
	}
	r.s.mu.Unlock()

	list := make([]repository.UnitTotals, 0, len(byUnit))
	for _, u := range byUnit {
		list = append(list, *u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Unit < list[j].Unit })
	return list, nil
}

func (s *Store) hydrateTransfer(t entity.Transfer) *entity.Transfer {
	if u, ok := s.users[t.UserID]; ok {
		t.Username = u.Username
	} else {
		t.Username = ""
	}
	return &t
}
