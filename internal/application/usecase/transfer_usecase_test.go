package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/dto"
	"github.com/jhoicas/goldvault-api/internal/application/usecase"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/memory"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event string, payload any) error {
	return m.Called(ctx, event, payload).Error(0)
}

// clock reloj manual para fijar la fecha de alta de cada transferencia.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func transferReq(from, to, amount string, karat int) dto.TransferRequest {
	return dto.TransferRequest{FromUnit: from, ToUnit: to, Amount: decimal.RequireFromString(amount), Karat: karat}
}

func newTransferUC(t *testing.T) (*usecase.TransferUseCase, *memory.Store, *clock, *entity.User) {
	t.Helper()
	store := memory.NewStore()
	user := &entity.User{Username: "usta", Role: entity.RoleUser}
	require.NoError(t, store.Users().Create(context.Background(), user))
	clk := &clock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	uc := usecase.NewTransferUseCase(store.Transfers(), audit.NewService(store.AuditLogs()), nil, nil).
		WithClock(clk.now, time.UTC)
	return uc, store, clk, user
}

// ─── CRUD ──────────────────────────────────────────────────────────────────

func TestTransferUseCase_CRUD(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	user := &entity.User{Username: "usta", Role: entity.RoleUser}
	require.NoError(t, store.Users().Create(ctx, user))
	auditSvc := audit.NewService(store.AuditLogs())
	uc := usecase.NewTransferUseCase(store.Transfers(), auditSvc, nil, nil)

	created, err := uc.Create(ctx, user.ID, user.Username, dto.TransferRequest{
		FromUnit: "  Eritme ", ToUnit: "Tezgah", Amount: decimal.RequireFromString("12.345"), Karat: 22, Notes: " lote 4 ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Eritme", created.FromUnit)
	assert.Equal(t, "Tezgah", created.ToUnit)
	assert.Equal(t, "12.35", created.Amount.StringFixed(2))
	assert.Equal(t, "lote 4", created.Notes)
	assert.Equal(t, "usta", created.Username)

	got, err := uc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "usta", got.Username)

	updated, err := uc.Update(ctx, "admin", created.ID, transferReq("Eritme", "Cila", "7", 18))
	require.NoError(t, err)
	assert.Equal(t, "Cila", updated.ToUnit)
	assert.Equal(t, 18, updated.Karat)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "la fecha de alta no cambia")
	assert.Empty(t, updated.Notes, "la edición reemplaza todos los campos")

	_, err = uc.Update(ctx, "admin", "no-existe", transferReq("A", "B", "1", 22))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, uc.Delete(ctx, "admin", created.ID))
	_, err = uc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, "admin", created.ID), domain.ErrNotFound)

	page, err := auditSvc.List(ctx, "Transferencia", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	assert.Equal(t, "Eritme → Cila: 7.00g (18k)", page.Logs[0].Details)
}

func TestTransferUseCase_Validacion(t *testing.T) {
	uc, _, _, user := newTransferUC(t)

	cases := []struct {
		name string
		in   dto.TransferRequest
	}{
		{"misma unidad", transferReq("Tezgah", " Tezgah ", "1", 22)},
		{"origen vacío", transferReq("  ", "Tezgah", "1", 22)},
		{"cantidad cero", transferReq("A", "B", "0", 22)},
		{"cantidad que redondea a cero", transferReq("A", "B", "0.004", 22)},
		{"cantidad negativa", transferReq("A", "B", "-3", 22)},
		{"quilate cero", transferReq("A", "B", "1", 0)},
		{"quilate 25", transferReq("A", "B", "1", 25)},
		{"unidad demasiado larga", transferReq(strings.Repeat("x", entity.MaxUnitNameLen+1), "B", "1", 22)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Create(context.Background(), user.ID, user.Username, tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

// ─── Listados y estadísticas ───────────────────────────────────────────────

func TestTransferUseCase_ListPorRangoDeFechas(t *testing.T) {
	ctx := context.Background()
	uc, _, clk, user := newTransferUC(t)

	for day := 1; day <= 3; day++ {
		clk.t = time.Date(2024, 3, day, 23, 30, 0, 0, time.UTC)
		_, err := uc.Create(ctx, user.ID, user.Username, transferReq("A", "B", "1", 22))
		require.NoError(t, err)
	}

	all, err := uc.List(ctx, dto.ListTransfersQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].CreatedAt.Day(), "más recientes primero")

	oneDay, err := uc.List(ctx, dto.ListTransfersQuery{StartDate: "2024-03-02", EndDate: "2024-03-02"})
	require.NoError(t, err)
	require.Len(t, oneDay, 1, "end_date incluye el día completo")
	assert.Equal(t, 2, oneDay[0].CreatedAt.Day())

	fromSecond, err := uc.List(ctx, dto.ListTransfersQuery{StartDate: "2024-03-02"})
	require.NoError(t, err)
	assert.Len(t, fromSecond, 2)

	untilSecond, err := uc.List(ctx, dto.ListTransfersQuery{EndDate: "2024-03-02"})
	require.NoError(t, err)
	assert.Len(t, untilSecond, 2)

	limited, err := uc.List(ctx, dto.ListTransfersQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 2, limited[0].CreatedAt.Day())

	_, err = uc.List(ctx, dto.ListTransfersQuery{StartDate: "2024-03-03", EndDate: "2024-03-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.List(ctx, dto.ListTransfersQuery{StartDate: "03/01/2024"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTransferUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	uc, _, clk, user := newTransferUC(t)

	clk.t = time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	_, err := uc.Create(ctx, user.ID, user.Username, transferReq("A", "B", "5.50", 22))
	require.NoError(t, err)
	clk.t = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = uc.Create(ctx, user.ID, user.Username, transferReq("B", "C", "2.25", 22))
	require.NoError(t, err)
	clk.t = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	_, err = uc.Create(ctx, user.ID, user.Username, transferReq("C", "A", "1", 14))
	require.NoError(t, err)

	stats, err := uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTransfers)
	assert.Equal(t, "8.75", stats.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, stats.TodayTransfers)
	assert.Equal(t, "3.25", stats.TodayAmount.StringFixed(2))
}

func TestTransferUseCase_UnitStats(t *testing.T) {
	ctx := context.Background()
	uc, _, _, user := newTransferUC(t)

	_, err := uc.Create(ctx, user.ID, user.Username, transferReq("Eritme", "Tezgah", "10", 22))
	require.NoError(t, err)
	_, err = uc.Create(ctx, user.ID, user.Username, transferReq("Tezgah", "Cila", "4", 22))
	require.NoError(t, err)

	stats, err := uc.UnitStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	byUnit := map[string]dto.UnitStatsResponse{}
	for _, s := range stats {
		byUnit[s.Unit] = s
	}
	assert.Equal(t, "-10.00", byUnit["Eritme"].NetAmount.StringFixed(2))
	assert.Equal(t, 1, byUnit["Eritme"].TransferCount)
	assert.Equal(t, "10.00", byUnit["Tezgah"].TotalIn.StringFixed(2))
	assert.Equal(t, "4.00", byUnit["Tezgah"].TotalOut.StringFixed(2))
	assert.Equal(t, "6.00", byUnit["Tezgah"].NetAmount.StringFixed(2))
	assert.Equal(t, 2, byUnit["Tezgah"].TransferCount)
	assert.Equal(t, "4.00", byUnit["Cila"].NetAmount.StringFixed(2))

	tezgah, err := uc.UnitTransfers(ctx, "Tezgah", 20, 0)
	require.NoError(t, err)
	assert.Len(t, tezgah, 2, "cuenta como origen y como destino")
	cila, err := uc.UnitTransfers(ctx, "Cila", 20, 0)
	require.NoError(t, err)
	assert.Len(t, cila, 1)

	_, err = uc.UnitTransfers(ctx, "  ", 20, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ─── Tiempo real ───────────────────────────────────────────────────────────

func TestTransferUseCase_PublicaEventos(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	events := new(mockPublisher)
	events.On("Publish", mock.Anything, usecase.EventTransferCreated, mock.AnythingOfType("*dto.TransferResponse")).Return(nil).Once()
	events.On("Publish", mock.Anything, usecase.EventTransferDeleted, mock.Anything).Return(errors.New("redis caído")).Once()
	uc := usecase.NewTransferUseCase(store.Transfers(), nil, events, nil)

	created, err := uc.Create(ctx, "", "admin", transferReq("A", "B", "1", 22))
	require.NoError(t, err)
	require.NoError(t, uc.Delete(ctx, "admin", created.ID), "un fallo de difusión no revierte el borrado")

	events.AssertExpectations(t)
}
