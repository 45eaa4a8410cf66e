package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// Acciones del registro de actividad para la gestión de operadores.
const (
	ActionUserRoleChanged   = "Rol de usuario cambiado"
	ActionUserDeleted       = "Usuario eliminado"
	ActionUserPasswordReset = "Contraseña restablecida"
)

// UserUseCase gestión de operadores por parte de un admin. El alta vive en auth.
type UserUseCase struct {
	repo  repository.UserRepository
	audit auditRecorder
	log   *logger.Logger
	cost  int
	now   func() time.Time
}

// NewUserUseCase construye el caso de uso. audit puede ser nil.
func NewUserUseCase(repo repository.UserRepository, audit auditRecorder, log *logger.Logger) *UserUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UserUseCase{
		repo:  repo,
		audit: audit,
		log:   log.Component("user"),
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
}

// WithBcryptCost cambia el coste de bcrypt (los tests usan bcrypt.MinCost).
func (uc *UserUseCase) WithBcryptCost(cost int) *UserUseCase {
	uc.cost = cost
	return uc
}

// List todos los operadores, sin hashes.
func (uc *UserUseCase) List(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, entityToUserResponse(u))
	}
	return out, nil
}

// ChangeRole cambia el rol de un operador. Siempre debe quedar al menos un admin.
func (uc *UserUseCase) ChangeRole(ctx context.Context, actor, id, role string) (*dto.UserResponse, error) {
	if !entity.IsValidRole(role) {
		return nil, fmt.Errorf("%w: rol %q", domain.ErrInvalidInput, role)
	}
	user, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		resp := entityToUserResponse(user)
		return &resp, nil
	}
	if user.Role == entity.RoleAdmin {
		if err := uc.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}
	previous := user.Role
	user.Role = role
	user.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	uc.record(ctx, actor, ActionUserRoleChanged, user.Username, fmt.Sprintf("%s → %s", previous, role))
	resp := entityToUserResponse(user)
	return &resp, nil
}

// Delete borra un operador. Un admin no puede borrarse a sí mismo ni al último admin.
func (uc *UserUseCase) Delete(ctx context.Context, actorID, actor, id string) error {
	if id == actorID {
		return fmt.Errorf("%w: no puede eliminar su propia cuenta", domain.ErrConflict)
	}
	user, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == entity.RoleAdmin {
		if err := uc.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if err := uc.repo.Delete(ctx, user.ID); err != nil {
		return err
	}
	uc.log.Info().Str("user", user.Username).Str("by", actor).Msg("operador eliminado")
	uc.record(ctx, actor, ActionUserDeleted, user.Username, "")
	return nil
}

// ResetPassword fija una nueva contraseña para el operador.
func (uc *UserUseCase) ResetPassword(ctx context.Context, actor, id, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: la contraseña debe tener al menos 8 caracteres", domain.ErrInvalidInput)
	}
	user, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, user); err != nil {
		return err
	}
	uc.record(ctx, actor, ActionUserPasswordReset, user.Username, "")
	return nil
}

func (uc *UserUseCase) get(ctx context.Context, id string) (*entity.User, error) {
	user, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (uc *UserUseCase) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := uc.repo.CountByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return fmt.Errorf("%w: debe quedar al menos un admin", domain.ErrConflict)
	}
	return nil
}

func (uc *UserUseCase) record(ctx context.Context, actor, action, target, details string) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		Username:   actor,
		Action:     action,
		EntityType: "user",
		EntityName: target,
		Details:    details,
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("action", action).Msg("registro de auditoría fallido")
	}
}

func entityToUserResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
