package repository

import (
	"context"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para contrapartes.
// La implementación vive en infrastructure.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
	List(ctx context.Context, limit, offset int) ([]*entity.Company, error)
	// Delete borra la contraparte; las operaciones que la referencian quedan sin contraparte.
	Delete(ctx context.Context, id string) error
}
