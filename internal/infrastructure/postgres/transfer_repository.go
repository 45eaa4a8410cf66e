package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo transferencias entre unidades de producción sobre PostgreSQL.
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador de transferencias.
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

const transferColumns = `
	t.id, t.from_unit, t.to_unit, t.amount, t.karat, t.cinsi, t.notes,
	COALESCE(t.user_id::text, ''), COALESCE(u.username, ''), t.created_at, t.updated_at`

// Create inserta la transferencia.
func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	query := `
		INSERT INTO transfers (id, from_unit, to_unit, amount, karat, cinsi, notes, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.FromUnit, t.ToUnit, t.Amount, t.Karat, t.Cinsi, t.Notes, t.UserID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transfer: %w", domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: operador inexistente", domain.ErrInvalidInput)
		}
		return storageErr("insert transfer", err)
	}
	return nil
}

// GetByID obtiene una transferencia por ID.
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + transferColumns + ` FROM transfers t LEFT JOIN users u ON u.id = t.user_id WHERE t.id = $1`
	t, err := scanTransfer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get transfer", err)
	}
	return t, nil
}

// Update reemplaza los campos editables.
func (r *TransferRepo) Update(ctx context.Context, t *entity.Transfer) error {
	query := `
		UPDATE transfers
		SET from_unit = $2, to_unit = $3, amount = $4, karat = $5, cinsi = $6, notes = $7, updated_at = $8
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, t.ID, t.FromUnit, t.ToUnit, t.Amount, t.Karat, t.Cinsi, t.Notes, t.UpdatedAt)
	if err != nil {
		return storageErr("update transfer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transfer %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete borra la transferencia.
func (r *TransferRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete transfer %s: %w", id, domain.ErrNotFound)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM transfers WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete transfer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete transfer %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List más recientes primero, con rango de fechas y unidad opcionales.
func (r *TransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.Transfer, error) {
	var (
		where []string
		args  []any
	)
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		where = append(where, fmt.Sprintf("t.created_at < $%d", len(args)))
	}
	if f.Unit != "" {
		args = append(args, f.Unit)
		where = append(where, fmt.Sprintf("(t.from_unit = $%d OR t.to_unit = $%d)", len(args), len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + transferColumns + ` FROM transfers t LEFT JOIN users u ON u.id = t.user_id`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY t.created_at DESC, t.id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, storageErr("list transfers", err)
	}
	defer rows.Close()

	var list []*entity.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, storageErr("scan transfer", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list transfers", err)
	}
	return list, nil
}

// Totals conteo y gramos totales, y los mismos valores desde since.
func (r *TransferRepo) Totals(ctx context.Context, since time.Time) (*repository.TransferTotals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COALESCE(SUM(amount) FILTER (WHERE created_at >= $1), 0)
		FROM transfers`
	var out repository.TransferTotals
	if err := r.q.QueryRow(ctx, query, since).Scan(&out.Count, &out.Amount, &out.SinceCount, &out.SinceAmount); err != nil {
		return nil, storageErr("transfer totals", err)
	}
	return &out, nil
}

// UnitTotals entradas y salidas por unidad.
func (r *TransferRepo) UnitTotals(ctx context.Context) ([]repository.UnitTotals, error) {
	query := `
		SELECT unit, SUM(amount_in), SUM(amount_out), COUNT(*)
		FROM (
			SELECT to_unit AS unit, amount AS amount_in, 0::numeric AS amount_out FROM transfers
			UNION ALL
			SELECT from_unit, 0::numeric, amount FROM transfers
		) m
		GROUP BY unit
		ORDER BY unit`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, storageErr("unit totals", err)
	}
	defer rows.Close()

	var out []repository.UnitTotals
	for rows.Next() {
		var u repository.UnitTotals
		if err := rows.Scan(&u.Unit, &u.TotalIn, &u.TotalOut, &u.TransferCount); err != nil {
			return nil, storageErr("scan unit totals", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("unit totals", err)
	}
	return out, nil
}

func scanTransfer(row pgx.Row) (*entity.Transfer, error) {
	var t entity.Transfer
	if err := row.Scan(
		&t.ID, &t.FromUnit, &t.ToUnit, &t.Amount, &t.Karat, &t.Cinsi, &t.Notes,
		&t.UserID, &t.Username, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
