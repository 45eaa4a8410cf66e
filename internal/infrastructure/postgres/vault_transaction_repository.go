package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.VaultTransactionRepository = (*VaultTransactionRepo)(nil)

// VaultTransactionRepo libro de la bóveda externa sobre PostgreSQL (usable con pool o tx).
type VaultTransactionRepo struct {
	q Querier
}

// NewVaultTransactionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewVaultTransactionRepository(q Querier) *VaultTransactionRepo {
	return &VaultTransactionRepo{q: q}
}

const vaultTxnColumns = `
	t.id, t.type, t.amount, t.karat, t.notes,
	COALESCE(t.user_id::text, ''), COALESCE(u.username, ''),
	t.company_id::text, COALESCE(c.name, ''), t.created_at`

const vaultTxnJoins = `
	LEFT JOIN users u ON u.id = t.user_id
	LEFT JOIN companies c ON c.id = t.company_id`

// Create inserta la operación.
func (r *VaultTransactionRepo) Create(ctx context.Context, txn *entity.VaultTransaction) error {
	query := `
		INSERT INTO vault_transactions (id, type, amount, karat, notes, user_id, company_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		txn.ID, txn.Type, txn.Amount, txn.Karat, txn.Notes, txn.UserID, txn.CompanyID, txn.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert vault transaction: %w", domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: contraparte u operador inexistente", domain.ErrInvalidInput)
		}
		return storageErr("insert vault transaction", err)
	}
	return nil
}

// GetByID obtiene una operación por ID.
func (r *VaultTransactionRepo) GetByID(ctx context.Context, id string) (*entity.VaultTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + vaultTxnColumns + ` FROM vault_transactions t ` + vaultTxnJoins + ` WHERE t.id = $1`
	txn, err := scanVaultTxn(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get vault transaction", err)
	}
	return txn, nil
}

// Delete borra la fila y la devuelve en la misma sentencia.
func (r *VaultTransactionRepo) Delete(ctx context.Context, id string) (*entity.VaultTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("delete vault transaction %s: %w", id, domain.ErrNotFound)
	}
	query := `
		WITH t AS (DELETE FROM vault_transactions WHERE id = $1 RETURNING *)
		SELECT ` + vaultTxnColumns + ` FROM t ` + vaultTxnJoins
	txn, err := scanVaultTxn(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delete vault transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, storageErr("delete vault transaction", err)
	}
	return txn, nil
}

// List más recientes primero, con filtros opcionales por quilate y tipo.
func (r *VaultTransactionRepo) List(ctx context.Context, f repository.VaultTransactionFilter) ([]*entity.VaultTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Karat != nil {
		args = append(args, *f.Karat)
		where = append(where, fmt.Sprintf("t.karat = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("t.type = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + vaultTxnColumns + ` FROM vault_transactions t ` + vaultTxnJoins)
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
	return r.queryList(ctx, "list vault transactions", b.String(), args...)
}

// ListAscending keyset sobre (created_at, id); usa el índice vault_transactions_created_idx.
func (r *VaultTransactionRepo) ListAscending(ctx context.Context, karat *int, after *repository.LedgerCursor, limit int) ([]*entity.VaultTransaction, error) {
	var (
		where []string
		args  []any
	)
	if karat != nil {
		args = append(args, *karat)
		where = append(where, fmt.Sprintf("t.karat = $%d", len(args)))
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		where = append(where, fmt.Sprintf("(t.created_at, t.id) > ($%d, $%d::uuid)", len(args)-1, len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + vaultTxnColumns + ` FROM vault_transactions t ` + vaultTxnJoins)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY t.created_at, t.id")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return r.queryList(ctx, "list vault transactions ascending", b.String(), args...)
}

// SumByKarat suma firmada por quilate calculada en la base de datos.
func (r *VaultTransactionRepo) SumByKarat(ctx context.Context) ([]repository.KaratSum, error) {
	query := `
		SELECT karat, SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END)
		FROM vault_transactions
		GROUP BY karat
		ORDER BY karat`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, storageErr("sum vault transactions", err)
	}
	defer rows.Close()

	var out []repository.KaratSum
	for rows.Next() {
		var ks repository.KaratSum
		if err := rows.Scan(&ks.Karat, &ks.Amount); err != nil {
			return nil, storageErr("scan karat sum", err)
		}
		out = append(out, ks)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("sum vault transactions", err)
	}
	return out, nil
}

func (r *VaultTransactionRepo) queryList(ctx context.Context, op, query string, args ...any) ([]*entity.VaultTransaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var list []*entity.VaultTransaction
	for rows.Next() {
		txn, err := scanVaultTxn(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		list = append(list, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return list, nil
}

func scanVaultTxn(row pgx.Row) (*entity.VaultTransaction, error) {
	var t entity.VaultTransaction
	if err := row.Scan(
		&t.ID, &t.Type, &t.Amount, &t.Karat, &t.Notes,
		&t.UserID, &t.Username, &t.CompanyID, &t.CompanyName, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
