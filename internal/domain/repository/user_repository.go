package repository

import (
	"context"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
// GetBy* devuelven (nil, nil) si no existe.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)
	// CountByRole número de usuarios con el rol dado.
	CountByRole(ctx context.Context, role string) (int, error)
	// Update guarda rol y hash de contraseña; domain.ErrNotFound si no existe.
	Update(ctx context.Context, user *entity.User) error
	// Delete domain.ErrNotFound si no existe.
	Delete(ctx context.Context, id string) error
}
