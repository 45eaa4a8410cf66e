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
	domvault "github.com/jhoicas/goldvault-api/internal/domain/vault"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// Acciones del registro de actividad para transferencias.
const (
	ActionTransferCreated = "Transferencia creada"
	ActionTransferUpdated = "Transferencia actualizada"
	ActionTransferDeleted = "Transferencia eliminada"
)

// Eventos en tiempo real de transferencias.
const (
	EventTransferCreated = "transfer.created"
	EventTransferUpdated = "transfer.updated"
	EventTransferDeleted = "transfer.deleted"
)

const dateLayout = "2006-01-02"

type eventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// TransferUseCase transferencias de oro entre unidades internas de producción.
type TransferUseCase struct {
	repo   repository.TransferRepository
	audit  auditRecorder
	events eventPublisher
	log    *logger.Logger
	now    func() time.Time
	loc    *time.Location
}

// NewTransferUseCase construye el caso de uso. audit y events pueden ser nil.
func NewTransferUseCase(repo repository.TransferRepository, audit auditRecorder, events eventPublisher, log *logger.Logger) *TransferUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &TransferUseCase{
		repo:   repo,
		audit:  audit,
		events: events,
		log:    log.Component("transfer"),
		now:    time.Now,
		loc:    time.Local,
	}
}

// WithClock fija el reloj y la zona horaria con la que se interpretan "hoy" y los rangos
// de fechas.
func (uc *TransferUseCase) WithClock(now func() time.Time, loc *time.Location) *TransferUseCase {
	uc.now = now
	if loc != nil {
		uc.loc = loc
	}
	return uc
}

// Create registra una transferencia a nombre del operador.
func (uc *TransferUseCase) Create(ctx context.Context, userID, username string, in dto.TransferRequest) (*dto.TransferResponse, error) {
	t, err := uc.fromRequest(in)
	if err != nil {
		return nil, err
	}
	now := uc.now().UTC()
	t.ID = uuid.New().String()
	t.UserID = userID
	t.Username = username
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := uc.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("transfer_id", t.ID).
		Str("from", t.FromUnit).
		Str("to", t.ToUnit).
		Str("amount", t.Amount.StringFixed(entity.AmountScale)).
		Int("karat", t.Karat).
		Str("user", username).
		Msg("transferencia registrada")
	uc.record(ctx, username, ActionTransferCreated, t)
	out := toTransferResponse(t)
	uc.publish(ctx, EventTransferCreated, out)
	return out, nil
}

// Update reemplaza origen, destino, cantidad, quilate y notas.
func (uc *TransferUseCase) Update(ctx context.Context, username, id string, in dto.TransferRequest) (*dto.TransferResponse, error) {
	existing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	t, err := uc.fromRequest(in)
	if err != nil {
		return nil, err
	}
	t.ID = existing.ID
	t.UserID = existing.UserID
	t.Username = existing.Username
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	uc.record(ctx, username, ActionTransferUpdated, t)
	out := toTransferResponse(t)
	uc.publish(ctx, EventTransferUpdated, out)
	return out, nil
}

// Delete borra la transferencia.
func (uc *TransferUseCase) Delete(ctx context.Context, username, id string) error {
	t, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return domain.ErrNotFound
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.record(ctx, username, ActionTransferDeleted, t)
	uc.publish(ctx, EventTransferDeleted, map[string]string{"id": t.ID})
	return nil
}

// GetByID domain.ErrNotFound si no existe.
func (uc *TransferUseCase) GetByID(ctx context.Context, id string) (*dto.TransferResponse, error) {
	t, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrNotFound
	}
	return toTransferResponse(t), nil
}

// List transferencias más recientes primero. Las fechas son días completos en la zona
// horaria del caso de uso; se puede indicar solo una de ellas.
func (uc *TransferUseCase) List(ctx context.Context, q dto.ListTransfersQuery) ([]dto.TransferResponse, error) {
	filter := repository.TransferFilter{Limit: q.Limit, Offset: q.Offset}
	if q.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, q.StartDate, uc.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date %q", domain.ErrInvalidInput, q.StartDate)
		}
		filter.Since = &start
	}
	if q.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, q.EndDate, uc.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date %q", domain.ErrInvalidInput, q.EndDate)
		}
		until := end.AddDate(0, 0, 1)
		filter.Until = &until
	}
	if filter.Since != nil && filter.Until != nil && !filter.Since.Before(*filter.Until) {
		return nil, fmt.Errorf("%w: start_date posterior a end_date", domain.ErrInvalidInput)
	}
	return uc.list(ctx, filter)
}

// UnitTransfers transferencias en las que la unidad es origen o destino.
func (uc *TransferUseCase) UnitTransfers(ctx context.Context, unit string, limit, offset int) ([]dto.TransferResponse, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return nil, fmt.Errorf("%w: unidad obligatoria", domain.ErrInvalidInput)
	}
	return uc.list(ctx, repository.TransferFilter{Unit: unit, Limit: limit, Offset: offset})
}

// Stats totales históricos y del día en curso.
func (uc *TransferUseCase) Stats(ctx context.Context) (*dto.TransferStatsResponse, error) {
	now := uc.now().In(uc.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, uc.loc)
	totals, err := uc.repo.Totals(ctx, today)
	if err != nil {
		return nil, err
	}
	return &dto.TransferStatsResponse{
		TotalTransfers: totals.Count,
		TotalAmount:    totals.Amount,
		TodayTransfers: totals.SinceCount,
		TodayAmount:    totals.SinceAmount,
	}, nil
}

// UnitStats balance de entradas y salidas por unidad.
func (uc *TransferUseCase) UnitStats(ctx context.Context) ([]dto.UnitStatsResponse, error) {
	totals, err := uc.repo.UnitTotals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UnitStatsResponse, 0, len(totals))
	for _, u := range totals {
		out = append(out, dto.UnitStatsResponse{
			Unit:          u.Unit,
			TotalIn:       u.TotalIn,
			TotalOut:      u.TotalOut,
			NetAmount:     u.TotalIn.Sub(u.TotalOut),
			TransferCount: u.TransferCount,
		})
	}
	return out, nil
}

func (uc *TransferUseCase) list(ctx context.Context, filter repository.TransferFilter) ([]dto.TransferResponse, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: paginación negativa", domain.ErrInvalidInput)
	}
	list, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransferResponse, 0, len(list))
	for _, t := range list {
		out = append(out, *toTransferResponse(t))
	}
	return out, nil
}

func (uc *TransferUseCase) fromRequest(in dto.TransferRequest) (*entity.Transfer, error) {
	from := strings.TrimSpace(in.FromUnit)
	to := strings.TrimSpace(in.ToUnit)
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: unidad de origen y destino obligatorias", domain.ErrInvalidInput)
	}
	if len(from) > entity.MaxUnitNameLen || len(to) > entity.MaxUnitNameLen {
		return nil, fmt.Errorf("%w: nombre de unidad demasiado largo", domain.ErrInvalidInput)
	}
	if from == to {
		return nil, fmt.Errorf("%w: origen y destino deben ser distintos", domain.ErrInvalidInput)
	}
	amount := domvault.NormalizeAmount(in.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
	}
	if !entity.IsValidKarat(in.Karat) {
		return nil, fmt.Errorf("%w: quilate %d fuera de rango", domain.ErrInvalidInput, in.Karat)
	}
	return &entity.Transfer{
		FromUnit: from,
		ToUnit:   to,
		Amount:   amount,
		Karat:    in.Karat,
		Cinsi:    strings.TrimSpace(in.Cinsi),
		Notes:    strings.TrimSpace(in.Notes),
	}, nil
}

func (uc *TransferUseCase) record(ctx context.Context, username, action string, t *entity.Transfer) {
	if uc.audit == nil {
		return
	}
	err := uc.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		Username:   username,
		Action:     action,
		EntityType: "transfer",
		EntityName: t.ID,
		Details:    fmt.Sprintf("%s → %s: %sg (%dk)", t.FromUnit, t.ToUnit, t.Amount.StringFixed(entity.AmountScale), t.Karat),
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("action", action).Msg("registro de auditoría fallido")
	}
}

func (uc *TransferUseCase) publish(ctx context.Context, event string, payload any) {
	if uc.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.events.Publish(pctx, event, payload); err != nil {
		uc.log.Warn().Err(err).Str("event", event).Msg("difusión en tiempo real fallida")
	}
}

func toTransferResponse(t *entity.Transfer) *dto.TransferResponse {
	return &dto.TransferResponse{
		ID:        t.ID,
		FromUnit:  t.FromUnit,
		ToUnit:    t.ToUnit,
		Amount:    t.Amount,
		Karat:     t.Karat,
		Cinsi:     t.Cinsi,
		Notes:     t.Notes,
		UserID:    t.UserID,
		Username:  t.Username,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
