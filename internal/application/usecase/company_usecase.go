package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// Acciones del registro de actividad para contrapartes.
const (
	ActionCompanyCreated = "Contraparte creada"
	ActionCompanyUpdated = "Contraparte actualizada"
	ActionCompanyDeleted = "Contraparte eliminada"
)

type auditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// CompanyUseCase aplica reglas de negocio para contrapartes (empresas o personas).
type CompanyUseCase struct {
	repo  repository.CompanyRepository
	audit auditRecorder
	log   *logger.Logger
	now   func() time.Time
}

// NewCompanyUseCase construye el caso de uso. audit puede ser nil.
func NewCompanyUseCase(repo repository.CompanyRepository, audit auditRecorder, log *logger.Logger) *CompanyUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &CompanyUseCase{repo: repo, audit: audit, log: log.Component("company"), now: time.Now}
}

// Create crea una contraparte. Type vacío = company.
func (uc *CompanyUseCase) Create(ctx context.Context, username string, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: nombre obligatorio", domain.ErrInvalidInput)
	}
	typ := in.Type
	if typ == "" {
		typ = entity.CompanyTypeCompany
	}
	if !entity.IsValidCompanyType(typ) {
		return nil, fmt.Errorf("%w: tipo %q", domain.ErrInvalidInput, typ)
	}
	now := uc.now()
	company := &entity.Company{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      typ,
		Contact:   strings.TrimSpace(in.Contact),
		Address:   strings.TrimSpace(in.Address),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, company); err != nil {
		return nil, err
	}
	uc.record(ctx, username, ActionCompanyCreated, company)
	return entityToCompanyResponse(company), nil
}

// GetByID obtiene una contraparte por ID. domain.ErrNotFound si no existe.
func (uc *CompanyUseCase) GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return entityToCompanyResponse(company), nil
}

// Update aplica solo los campos presentes.
func (uc *CompanyUseCase) Update(ctx context.Context, username, id string, in dto.UpdateCompanyRequest) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: nombre obligatorio", domain.ErrInvalidInput)
		}
		company.Name = name
	}
	if in.Type != nil {
		if !entity.IsValidCompanyType(*in.Type) {
			return nil, fmt.Errorf("%w: tipo %q", domain.ErrInvalidInput, *in.Type)
		}
		company.Type = *in.Type
	}
	if in.Contact != nil {
		company.Contact = strings.TrimSpace(*in.Contact)
	}
	if in.Address != nil {
		company.Address = strings.TrimSpace(*in.Address)
	}
	if in.Notes != nil {
		company.Notes = strings.TrimSpace(*in.Notes)
	}
	company.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, company); err != nil {
		return nil, err
	}
	uc.record(ctx, username, ActionCompanyUpdated, company)
	return entityToCompanyResponse(company), nil
}

// List lista contrapartes con paginación.
func (uc *CompanyUseCase) List(ctx context.Context, limit, offset int) (*dto.CompanyListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CompanyResponse, 0, len(list))
	for _, c := range list {
		items = append(items, *entityToCompanyResponse(c))
	}
	return &dto.CompanyListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete borra la contraparte. Las operaciones de bóveda que la referencian se conservan
// sin contraparte.
func (uc *CompanyUseCase) Delete(ctx context.Context, username, id string) error {
	company, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if company == nil {
		return domain.ErrNotFound
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.record(ctx, username, ActionCompanyDeleted, company)
	return nil
}

func (uc *CompanyUseCase) record(ctx context.Context, username, action string, c *entity.Company) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		Username:   username,
		Action:     action,
		EntityType: "company",
		EntityName: c.Name,
		Details:    fmt.Sprintf("%s (%s)", c.Name, c.Type),
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("action", action).Msg("registro de auditoría fallido")
	}
}

func entityToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	if c == nil {
		return nil
	}
	return &dto.CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Contact:   c.Contact,
		Address:   c.Address,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
