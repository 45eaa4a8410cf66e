package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para contrapartes.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

const companyColumns = `id, name, type, contact, address, notes, created_at, updated_at`

// Create persiste una nueva contraparte.
func (r *CompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	query := `
		INSERT INTO companies (id, name, type, contact, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.Name, c.Type, c.Contact, c.Address, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert company: %w", domain.ErrDuplicate)
		}
		return storageErr("insert company", err)
	}
	return nil
}

// GetByID obtiene una contraparte por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	c, err := scanCompany(r.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get company", err)
	}
	return c, nil
}

// Update actualiza los datos de la contraparte.
func (r *CompanyRepo) Update(ctx context.Context, c *entity.Company) error {
	query := `
		UPDATE companies
		SET name = $2, type = $3, contact = $4, address = $5, notes = $6, updated_at = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, c.ID, c.Name, c.Type, c.Contact, c.Address, c.Notes, c.UpdatedAt)
	if err != nil {
		return storageErr("update company", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update company %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// List contrapartes por nombre.
func (r *CompanyRepo) List(ctx context.Context, limit, offset int) ([]*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY name, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += ` OFFSET $1`
		args = append(args, offset)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list companies", err)
	}
	defer rows.Close()

	var list []*entity.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, storageErr("scan company", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list companies", err)
	}
	return list, nil
}

// Delete borra la contraparte; la FK de vault_transactions la pone a NULL.
func (r *CompanyRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete company %s: %w", id, domain.ErrNotFound)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete company", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete company %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanCompany(row pgx.Row) (*entity.Company, error) {
	var c entity.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Contact, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
