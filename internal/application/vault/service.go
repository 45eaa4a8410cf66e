// Package vault implementa la bóveda externa: libro de depósitos/retiros de oro y el stock
// materializado por quilate que se deriva de él.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	domvault "github.com/jhoicas/goldvault-api/internal/domain/vault"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// Eventos en tiempo real.
const (
	EventTransactionCreated = "vault.transaction.created"
	EventTransactionDeleted = "vault.transaction.deleted"
	EventStockUpdated       = "vault.stock.updated"
)

// Acciones del registro de actividad.
const (
	ActionTransactionCreated = "Operación de bóveda externa"
	ActionTransactionDeleted = "Operación de bóveda externa eliminada"
	ActionStockSync          = "Sincronización de stock de bóveda externa"
	auditEntityType          = "external_vault"
)

// SyncLockKey clave del lock de resincronización.
const SyncLockKey = "vault:stock:sync"

const maxNotesLen = 1000

// Actor operador autenticado que ejecuta la operación (solo para auditoría).
type Actor struct {
	UserID   string
	Username string
	Role     string
}

// CreateTransactionInput entrada para registrar una operación.
type CreateTransactionInput struct {
	Type      string
	Amount    decimal.Decimal
	Karat     int
	Notes     string
	CompanyID *string
}

// SyncResult resultado de la resincronización.
type SyncResult struct {
	Processed int
	Karat     *int
}

// StockDrift diferencia entre el stock materializado y la suma del libro para un quilate.
type StockDrift struct {
	Karat      int
	Ledger     decimal.Decimal
	Stock      decimal.Decimal
	Difference decimal.Decimal // Stock - Ledger
}

// TransactionEvent payload de vault.transaction.*.
type TransactionEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Karat  int             `json:"karat"`
}

// StockEvent payload de vault.stock.updated.
type StockEvent struct {
	Karat  int             `json:"karat"`
	Amount decimal.Decimal `json:"amount"`
}

// Options comportamiento del servicio.
type Options struct {
	// AtomicWrites: libro + ajuste en la misma transacción. Con false el libro confirma
	// primero y un fallo del ajuste deja el stock desincronizado (ErrProjectionDrift)
	// hasta que un operador ejecute SyncStock. En ambos modos SyncStock espera a que
	// terminen las mutaciones en curso.
	AtomicWrites     bool
	BroadcastTimeout time.Duration
}

// ServiceDeps colaboradores del servicio. Audit, Events, Locker y Reports pueden ser nil.
type ServiceDeps struct {
	TxRunner   TxRunner
	Ledger     repository.VaultTransactionRepository // lecturas fuera de transacción
	Stock      repository.StockBalanceRepository     // lecturas fuera de transacción
	Companies  repository.CompanyRepository
	Reconciler *Reconciler
	Audit      AuditRecorder
	Events     Broadcaster
	Locker     SyncLocker
	Reports    StockReportRenderer
	Log        *logger.Logger
}

// Service superficie pública de la bóveda: coordina libro y stock a través del Reconciler
// y notifica a auditoría y tiempo real después de cada mutación exitosa.
type Service struct {
	deps ServiceDeps
	opts Options
	log  *logger.Logger
	now  func() time.Time

	wg sync.WaitGroup // publicaciones en curso

	// gate: las mutaciones en dos fases lo toman en lectura de la primera a la segunda
	// transacción; SyncStock en escritura.
	gate sync.RWMutex
}

// NewService construye el servicio.
func NewService(deps ServiceDeps, opts Options) *Service {
	if deps.Reconciler == nil {
		deps.Reconciler = NewReconciler(DefaultSyncBatchSize)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = 5 * time.Second
	}
	return &Service{
		deps: deps,
		opts: opts,
		log:  deps.Log.Component("vault"),
		now:  time.Now,
	}
}

// CreateTransaction valida y registra una operación y ajusta el stock de su quilate.
func (s *Service) CreateTransaction(ctx context.Context, actor Actor, in CreateTransactionInput) (*entity.VaultTransaction, error) {
	txn, err := s.newTransaction(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	var balance *entity.StockBalance
	if s.opts.AtomicWrites {
		err = s.deps.TxRunner.Run(ctx, func(ledger repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
			b, err := s.deps.Reconciler.ApplyCreate(ctx, ledger, stock, txn)
			balance = b
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		err = s.inTwoPhases(ctx,
			func(tx TxRunner) error {
				return tx.Run(ctx, func(ledger repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
					return s.deps.Reconciler.InsertLedger(ctx, ledger, stock, txn)
				})
			},
			func(tx TxRunner) error {
				return tx.Run(ctx, func(_ repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
					b, err := s.deps.Reconciler.Project(ctx, stock, txn.Karat, domvault.Delta(txn.Type, txn.Amount))
					balance = b
					return err
				})
			})
		var pe *projectionError
		if errors.As(err, &pe) {
			return nil, s.drift(txn, "create", pe.err)
		}
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("transaction_id", txn.ID).
		Str("type", txn.Type).
		Str("amount", txn.Amount.StringFixed(entity.AmountScale)).
		Int("karat", txn.Karat).
		Str("user", actor.Username).
		Msg("operación de bóveda registrada")

	s.record(ctx, actor, ActionTransactionCreated, txn)
	s.publish(EventTransactionCreated, transactionEvent(txn))
	s.publish(EventStockUpdated, stockEvents(balance))
	return txn, nil
}

// DeleteTransaction borra una operación del libro y revierte su efecto en el stock.
func (s *Service) DeleteTransaction(ctx context.Context, actor Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: operación %q", domain.ErrNotFound, id)
	}

	var (
		deleted *entity.VaultTransaction
		balance *entity.StockBalance
	)
	if s.opts.AtomicWrites {
		err := s.deps.TxRunner.Run(ctx, func(ledger repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
			d, b, err := s.deps.Reconciler.ApplyDelete(ctx, ledger, stock, id)
			deleted, balance = d, b
			return err
		})
		if err != nil {
			return err
		}
	} else {
		err := s.inTwoPhases(ctx,
			func(tx TxRunner) error {
				return tx.Run(ctx, func(ledger repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
					d, err := s.deps.Reconciler.RemoveLedger(ctx, ledger, stock, id)
					deleted = d
					return err
				})
			},
			func(tx TxRunner) error {
				return tx.Run(ctx, func(_ repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
					b, err := s.deps.Reconciler.Project(ctx, stock, deleted.Karat, domvault.ReverseDelta(deleted.Type, deleted.Amount))
					balance = b
					return err
				})
			})
		var pe *projectionError
		if errors.As(err, &pe) {
			return s.drift(deleted, "delete", pe.err)
		}
		if err != nil {
			return err
		}
	}

	s.log.Info().
		Str("transaction_id", deleted.ID).
		Int("karat", deleted.Karat).
		Str("user", actor.Username).
		Msg("operación de bóveda eliminada")

	s.record(ctx, actor, ActionTransactionDeleted, deleted)
	s.publish(EventTransactionDeleted, transactionEvent(deleted))
	s.publish(EventStockUpdated, stockEvents(balance))
	return nil
}

// SyncStock recalcula el stock desde el libro. karat nil = todos los quilates.
// Solo una resincronización a la vez (domain.ErrConflict si ya hay otra en curso).
func (s *Service) SyncStock(ctx context.Context, actor Actor, karat *int) (*SyncResult, error) {
	if karat != nil && !entity.IsValidKarat(*karat) {
		return nil, fmt.Errorf("%w: quilate %d fuera de rango", domain.ErrInvalidInput, *karat)
	}

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Obtain(ctx, SyncLockKey)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("liberar lock de sincronización")
			}
		}()
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	started := s.now()
	var processed int
	err := s.deps.TxRunner.Run(ctx, func(ledger repository.VaultTransactionRepository, stock repository.StockBalanceRepository) error {
		n, err := s.deps.Reconciler.Resync(ctx, ledger, stock, karat)
		processed = n
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("sincronización de stock fallida")
		return nil, err
	}

	ev := s.log.Info().Int("processed", processed).Dur("elapsed", s.now().Sub(started))
	if karat != nil {
		ev = ev.Int("karat", *karat)
	}
	ev.Msg("stock de bóveda sincronizado")

	details := fmt.Sprintf("%d operaciones procesadas", processed)
	if karat != nil {
		details = fmt.Sprintf("%s (%dk)", details, *karat)
	}
	s.recordEntry(ctx, audit.Entry{
		Username:   actor.Username,
		Action:     ActionStockSync,
		EntityType: auditEntityType,
		EntityName: "stock",
		Details:    details,
	})

	if rows, err := s.deps.Stock.List(ctx); err != nil {
		s.log.Warn().Err(err).Msg("leer stock para difusión")
	} else {
		s.publish(EventStockUpdated, stockEvents(rows...))
	}
	return &SyncResult{Processed: processed, Karat: karat}, nil
}

// ListTransactions operaciones del libro, más recientes primero.
func (s *Service) ListTransactions(ctx context.Context, filter repository.VaultTransactionFilter) ([]*entity.VaultTransaction, error) {
	if filter.Type != "" && !entity.IsValidVaultType(filter.Type) {
		return nil, fmt.Errorf("%w: tipo %q", domain.ErrInvalidInput, filter.Type)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: paginación negativa", domain.ErrInvalidInput)
	}
	return s.deps.Ledger.List(ctx, filter)
}

// ListStock stock por quilate, ordenado por quilate.
func (s *Service) ListStock(ctx context.Context) ([]*entity.StockBalance, error) {
	return s.deps.Stock.List(ctx)
}

// VerifyStock compara el stock materializado con la suma del libro y devuelve solo los
// quilates que no cuadran. Es de solo lectura: la reparación es SyncStock.
func (s *Service) VerifyStock(ctx context.Context) ([]StockDrift, error) {
	sums, err := s.deps.Ledger.SumByKarat(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Stock.List(ctx)
	if err != nil {
		return nil, err
	}

	ledger := make(map[int]decimal.Decimal, len(sums))
	for _, ks := range sums {
		ledger[ks.Karat] = ks.Amount
	}
	stock := make(map[int]decimal.Decimal, len(rows))
	for _, r := range rows {
		stock[r.Karat] = r.Amount
	}

	karats := make([]int, 0, len(ledger)+len(stock))
	for k := range ledger {
		karats = append(karats, k)
	}
	for k := range stock {
		if _, ok := ledger[k]; !ok {
			karats = append(karats, k)
		}
	}
	sort.Ints(karats)

	var drifts []StockDrift
	for _, k := range karats {
		l, st := ledger[k], stock[k]
		if !l.Equal(st) {
			drifts = append(drifts, StockDrift{Karat: k, Ledger: l, Stock: st, Difference: st.Sub(l)})
		}
	}
	if len(drifts) > 0 {
		s.log.Warn().Int("karats", len(drifts)).Msg("stock desincronizado respecto al libro")
	}
	return drifts, nil
}

// StockReport genera el reporte PDF del stock actual, con las diferencias detectadas.
func (s *Service) StockReport(ctx context.Context) ([]byte, error) {
	if s.deps.Reports == nil {
		return nil, fmt.Errorf("reporte de stock no configurado")
	}
	rows, err := s.deps.Stock.List(ctx)
	if err != nil {
		return nil, err
	}
	drifts, err := s.VerifyStock(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Reports.RenderStock(ctx, rows, drifts)
}

// Wait bloquea hasta que terminen las difusiones en curso (apagado ordenado y tests).
func (s *Service) Wait() {
	s.wg.Wait()
}

// projectionError fallo del ajuste de stock después de confirmar el libro.
type projectionError struct{ err error }

func (e *projectionError) Error() string { return e.err.Error() }
func (e *projectionError) Unwrap() error { return e.err }

// inTwoPhases ejecuta la mutación del libro y el ajuste del stock en transacciones
// separadas sin que una resincronización pueda ejecutarse entre ambas. Un fallo del
// ajuste se devuelve como *projectionError.
func (s *Service) inTwoPhases(ctx context.Context, ledgerStep, stockStep func(tx TxRunner) error) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	steps := func(tx TxRunner) error {
		if err := ledgerStep(tx); err != nil {
			return err
		}
		if err := stockStep(tx); err != nil {
			return &projectionError{err: err}
		}
		return nil
	}
	if session, ok := s.deps.TxRunner.(SessionTxRunner); ok {
		return session.WithSharedProjection(ctx, steps)
	}
	return steps(s.deps.TxRunner)
}

func (s *Service) newTransaction(ctx context.Context, actor Actor, in CreateTransactionInput) (*entity.VaultTransaction, error) {
	if !entity.IsValidVaultType(in.Type) {
		return nil, fmt.Errorf("%w: tipo de operación %q", domain.ErrInvalidInput, in.Type)
	}
	amount := domvault.NormalizeAmount(in.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
	}
	if !entity.IsValidKarat(in.Karat) {
		return nil, fmt.Errorf("%w: quilate %d fuera de rango", domain.ErrInvalidInput, in.Karat)
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLen {
		return nil, fmt.Errorf("%w: notas demasiado largas", domain.ErrInvalidInput)
	}

	var companyID *string
	if in.CompanyID != nil && strings.TrimSpace(*in.CompanyID) != "" {
		id := strings.TrimSpace(*in.CompanyID)
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: contraparte %q", domain.ErrInvalidInput, id)
		}
		company, err := s.deps.Companies.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if company == nil {
			return nil, fmt.Errorf("%w: la contraparte no existe", domain.ErrInvalidInput)
		}
		companyID = &id
	}

	return &entity.VaultTransaction{
		ID:        uuid.New().String(),
		Type:      in.Type,
		Amount:    amount,
		Karat:     in.Karat,
		Notes:     notes,
		UserID:    actor.UserID,
		Username:  actor.Username,
		CompanyID: companyID,
		CreatedAt: s.now().UTC(),
	}, nil
}

// drift registra el estado en el que el libro cambió pero el stock no. No se deshace la
// mutación del libro: la recuperación es SyncStock.
func (s *Service) drift(txn *entity.VaultTransaction, op string, cause error) error {
	s.log.Error().
		Err(cause).
		Bool("drift", true).
		Str("op", op).
		Str("transaction_id", txn.ID).
		Int("karat", txn.Karat).
		Msg("libro actualizado sin ajustar stock, ejecutar sincronización")
	return fmt.Errorf("%w: operación %s (%s): %w", domain.ErrProjectionDrift, txn.ID, op, cause)
}

func (s *Service) record(ctx context.Context, actor Actor, action string, txn *entity.VaultTransaction) {
	s.recordEntry(ctx, audit.Entry{
		Username:   actor.Username,
		Action:     action,
		EntityType: auditEntityType,
		EntityName: txn.ID,
		Details:    fmt.Sprintf("%s: %sg (%dk)", txn.Type, txn.Amount.StringFixed(entity.AmountScale), txn.Karat),
	})
}

func (s *Service) recordEntry(ctx context.Context, e audit.Entry) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn().Err(err).Str("action", e.Action).Msg("registro de auditoría fallido")
	}
}

func (s *Service) publish(event string, payload any) {
	if s.deps.Events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.BroadcastTimeout)
		defer cancel()
		if err := s.deps.Events.Publish(ctx, event, payload); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("difusión en tiempo real fallida")
		}
	}()
}

func transactionEvent(t *entity.VaultTransaction) TransactionEvent {
	return TransactionEvent{ID: t.ID, Type: t.Type, Amount: t.Amount, Karat: t.Karat}
}

func stockEvents(rows ...*entity.StockBalance) []StockEvent {
	out := make([]StockEvent, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, StockEvent{Karat: r.Karat, Amount: r.Amount})
	}
	return out
}
