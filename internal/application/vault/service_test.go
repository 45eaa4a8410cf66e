package vault_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	domvault "github.com/jhoicas/goldvault-api/internal/domain/vault"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var testActor = vault.Actor{UserID: "00000000-0000-0000-0000-000000000001", Username: "admin", Role: entity.RoleAdmin}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return b.err
}

func (b *recordingBroadcaster) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Record(ctx context.Context, e audit.Entry) error {
	return m.Called(ctx, e).Error(0)
}

type fixture struct {
	svc    *vault.Service
	store  *memory.Store
	events *recordingBroadcaster
	tx     *flakyTx
}

// flakyTx envuelve el TxRunner en memoria y permite hacer fallar el ajuste de stock.
type flakyTx struct {
	store      *memory.Store
	mu         sync.Mutex
	failAdjust bool
}

func (f *flakyTx) setFailAdjust(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAdjust = v
}

func (f *flakyTx) Run(ctx context.Context, fn func(repository.VaultTransactionRepository, repository.StockBalanceRepository) error) error {
	f.mu.Lock()
	fail := f.failAdjust
	f.mu.Unlock()
	return f.store.Run(ctx, func(l repository.VaultTransactionRepository, s repository.StockBalanceRepository) error {
		return fn(l, &flakyStock{StockBalanceRepository: s, fail: fail})
	})
}

var errStockDown = errors.New("stock no disponible")

type flakyStock struct {
	repository.StockBalanceRepository
	fail bool
}

func (f *flakyStock) Adjust(ctx context.Context, karat int, delta decimal.Decimal) (*entity.StockBalance, error) {
	if f.fail {
		return nil, errStockDown
	}
	return f.StockBalanceRepository.Adjust(ctx, karat, delta)
}

func newFixture(t *testing.T, opts vault.Options, batchSize int) *fixture {
	t.Helper()
	store := memory.NewStore()
	tx := &flakyTx{store: store}
	events := &recordingBroadcaster{}
	svc := vault.NewService(vault.ServiceDeps{
		TxRunner:   tx,
		Ledger:     store.Ledger(),
		Stock:      store.Stock(),
		Companies:  store.Companies(),
		Reconciler: vault.NewReconciler(batchSize),
		Audit:      audit.NewService(store.AuditLogs()),
		Events:     events,
	}, opts)
	return &fixture{svc: svc, store: store, events: events, tx: tx}
}

func atomic(t *testing.T) *fixture {
	return newFixture(t, vault.Options{AtomicWrites: true}, 0)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) create(t *testing.T, typ string, amount string, karat int) *entity.VaultTransaction {
	t.Helper()
	txn, err := f.svc.CreateTransaction(context.Background(), testActor, vault.CreateTransactionInput{
		Type: typ, Amount: d(amount), Karat: karat,
	})
	require.NoError(t, err)
	return txn
}

func (f *fixture) stockOf(t *testing.T, karat int) (decimal.Decimal, bool) {
	t.Helper()
	rows, err := f.svc.ListStock(context.Background())
	require.NoError(t, err)
	for _, r := range rows {
		if r.Karat == karat {
			return r.Amount, true
		}
	}
	return decimal.Zero, false
}

// assertInvariant: para cada quilate, stock == Σ firmada de las operaciones vigentes.
func (f *fixture) assertInvariant(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	txns, err := f.store.Ledger().List(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	expected := domvault.SumByKarat(txns)

	rows, err := f.store.Stock().List(ctx)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, r := range rows {
		seen[r.Karat] = true
		assert.Truef(t, r.Amount.Equal(expected[r.Karat]),
			"quilate %d: stock %s, libro %s", r.Karat, r.Amount, expected[r.Karat])
	}
	for k := range expected {
		assert.Truef(t, seen[k], "falta fila de stock para el quilate %d", k)
	}

	drifts, err := f.svc.VerifyStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios A–D
// ──────────────────────────────────────────────────────────────────────────────

func TestScenarios_DepositoRetiroBorradoSincronizacion(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)

	// A: libro vacío → depósito 100g 24k
	f.create(t, entity.VaultDeposit, "100", 24)
	rows, err := f.svc.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 24, rows[0].Karat)
	assert.True(t, rows[0].Amount.Equal(d("100")))

	// B: retiro 30g 24k → 70
	withdrawal := f.create(t, entity.VaultWithdrawal, "30", 24)
	rows, err = f.svc.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(d("70")))

	// C: borrar el retiro → 100
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, withdrawal.ID))
	rows, err = f.svc.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(d("100")))

	// D: corromper el stock a mano y sincronizar → 100, 1 operación procesada
	f.store.OverwriteStock(24, d("999"))
	drifts, err := f.svc.VerifyStock(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Difference.Equal(d("899")))

	res, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	amount, ok := f.stockOf(t, 24)
	require.True(t, ok)
	assert.True(t, amount.Equal(d("100")))
	f.assertInvariant(t)
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateTransaction_RechazaEntradasInvalidas(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	f.create(t, entity.VaultDeposit, "50", 18)

	cases := []struct {
		name string
		in   vault.CreateTransactionInput
	}{
		{"cantidad cero", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("0"), Karat: 18}},
		{"cantidad negativa", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("-5"), Karat: 18}},
		{"cantidad que redondea a cero", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("0.004"), Karat: 18}},
		{"tipo desconocido", vault.CreateTransactionInput{Type: "transfer", Amount: d("1"), Karat: 18}},
		{"tipo vacío", vault.CreateTransactionInput{Amount: d("1"), Karat: 18}},
		{"sin quilate", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("1")}},
		{"quilate > 24", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("1"), Karat: 25}},
		{"contraparte inexistente", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("1"), Karat: 18, CompanyID: ptr(uuid.New().String())}},
		{"contraparte mal formada", vault.CreateTransactionInput{Type: entity.VaultDeposit, Amount: d("1"), Karat: 18, CompanyID: ptr("x")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(ctx, testActor, tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	txns, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1, "ninguna entrada inválida llega al libro")
	amount, _ := f.stockOf(t, 18)
	assert.True(t, amount.Equal(d("50")), "ni al stock")
	_, ok := f.stockOf(t, 25)
	assert.False(t, ok)
}

func TestCreateTransaction_NormalizaCantidad(t *testing.T) {
	f := atomic(t)
	txn := f.create(t, entity.VaultDeposit, "10.005", 22)
	assert.Equal(t, "10.01", txn.Amount.String())
	amount, _ := f.stockOf(t, 22)
	assert.True(t, amount.Equal(d("10.01")))
}

func TestCreateTransaction_ConContraparte(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	company := &entity.Company{Name: "Kuyumcu A.Ş.", Type: entity.CompanyTypeCompany}
	require.NoError(t, f.store.Companies().Create(ctx, company))

	_, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
		Type: entity.VaultDeposit, Amount: d("5"), Karat: 14, Notes: "  lingote  ", CompanyID: &company.ID,
	})
	require.NoError(t, err)

	txns, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "lingote", txns[0].Notes)
	require.NotNil(t, txns[0].CompanyID)
	assert.Equal(t, company.ID, *txns[0].CompanyID)
	assert.Equal(t, "Kuyumcu A.Ş.", txns[0].CompanyName)
}

func TestListTransactions_FiltrosYOrden(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	first := f.create(t, entity.VaultDeposit, "1", 14)
	f.create(t, entity.VaultWithdrawal, "1", 18)
	last := f.create(t, entity.VaultDeposit, "1", 14)

	all, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, last.ID, all[0].ID, "más recientes primero")
	assert.Equal(t, first.ID, all[2].ID)

	k := 14
	only14, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{Karat: &k})
	require.NoError(t, err)
	assert.Len(t, only14, 2)

	withdrawals, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{Type: entity.VaultWithdrawal})
	require.NoError(t, err)
	assert.Len(t, withdrawals, 1)

	_, err = f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{Type: "robo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Borrado
// ──────────────────────────────────────────────────────────────────────────────

func TestDeleteTransaction_RevierteCreacion(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	f.create(t, entity.VaultDeposit, "40", 18)
	before, _ := f.stockOf(t, 18)

	txn := f.create(t, entity.VaultDeposit, "10", 18)
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID))

	after, _ := f.stockOf(t, 18)
	assert.True(t, before.Equal(after))
	f.assertInvariant(t)
}

func TestDeleteTransaction_NoEncontrada(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	txn := f.create(t, entity.VaultDeposit, "10", 18)

	assert.ErrorIs(t, f.svc.DeleteTransaction(ctx, testActor, uuid.New().String()), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteTransaction(ctx, testActor, "no-es-uuid"), domain.ErrNotFound)

	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID))
	assert.ErrorIs(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID), domain.ErrNotFound,
		"borrar dos veces es un fallo, no un éxito idempotente")

	amount, ok := f.stockOf(t, 18)
	assert.True(t, ok, "la fila del quilate se conserva a cero")
	assert.True(t, amount.IsZero())
}

// ──────────────────────────────────────────────────────────────────────────────
// Invariante y concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func TestInvariante_SecuenciaAleatoria(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	rng := rand.New(rand.NewSource(42))
	karats := []int{14, 18, 22, 24}
	var live []string

	for i := 0; i < 300; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, live[idx]))
			live = append(live[:idx], live[idx+1:]...)
		} else {
			typ := entity.VaultDeposit
			if rng.Intn(2) == 0 {
				typ = entity.VaultWithdrawal
			}
			amount := decimal.New(int64(rng.Intn(100000)+1), -2)
			txn, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
				Type: typ, Amount: amount, Karat: karats[rng.Intn(len(karats))],
			})
			require.NoError(t, err)
			live = append(live, txn.ID)
		}
		f.assertInvariant(t)
	}
}

func TestConcurrencia_QuilatesIndependientes(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)

	var wg sync.WaitGroup
	for _, karat := range []int{14, 18} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(karat int) {
				defer wg.Done()
				_, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
					Type: entity.VaultDeposit, Amount: d("1.5"), Karat: karat,
				})
				assert.NoError(t, err)
			}(karat)
		}
	}
	wg.Wait()

	a14, _ := f.stockOf(t, 14)
	a18, _ := f.stockOf(t, 18)
	assert.True(t, a14.Equal(d("75")), "sin actualizaciones perdidas en 14k")
	assert.True(t, a18.Equal(d("75")), "sin actualizaciones perdidas en 18k")
	f.assertInvariant(t)
}

func TestConcurrencia_SyncDuranteMutaciones(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
				Type: entity.VaultDeposit, Amount: d("2"), Karat: 22,
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.SyncStock(ctx, testActor, nil)
		}()
	}
	wg.Wait()

	amount, _ := f.stockOf(t, 22)
	assert.True(t, amount.Equal(d("80")), "ninguna resincronización borra un ajuste concurrente")
	f.assertInvariant(t)
}

// ──────────────────────────────────────────────────────────────────────────────
// Resincronización
// ──────────────────────────────────────────────────────────────────────────────

func TestSyncStock_Idempotente(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	f.create(t, entity.VaultDeposit, "12.5", 18)
	f.create(t, entity.VaultWithdrawal, "2.25", 18)
	f.create(t, entity.VaultDeposit, "7", 24)

	first, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	rows1, err := f.svc.ListStock(ctx)
	require.NoError(t, err)

	second, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	rows2, err := f.svc.ListStock(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Processed, second.Processed)
	require.Len(t, rows2, len(rows1))
	for i := range rows1 {
		assert.Equal(t, rows1[i].Karat, rows2[i].Karat)
		assert.True(t, rows1[i].Amount.Equal(rows2[i].Amount))
	}
}

func TestSyncStock_PorLotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, vault.Options{AtomicWrites: true}, 2)
	for i := 0; i < 5; i++ {
		f.create(t, entity.VaultDeposit, "1.1", 14+i%2*4)
	}
	f.store.OverwriteStock(14, d("-1"))
	f.store.OverwriteStock(18, d("0"))

	res, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Processed)
	f.assertInvariant(t)
}

func TestSyncStock_ConservaQuilatesSinOperaciones(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	txn := f.create(t, entity.VaultDeposit, "3", 9)
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID))
	f.store.OverwriteStock(9, d("3"))

	res, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	amount, ok := f.stockOf(t, 9)
	assert.True(t, ok)
	assert.True(t, amount.IsZero())
}

func TestSyncStock_SoloUnQuilate(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	f.create(t, entity.VaultDeposit, "10", 14)
	f.create(t, entity.VaultDeposit, "20", 24)
	f.store.OverwriteStock(14, d("1"))
	f.store.OverwriteStock(24, d("1"))

	k := 24
	res, err := f.svc.SyncStock(ctx, testActor, &k)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	a24, _ := f.stockOf(t, 24)
	a14, _ := f.stockOf(t, 14)
	assert.True(t, a24.Equal(d("20")))
	assert.True(t, a14.Equal(d("1")), "los demás quilates no se tocan")

	bad := 0
	_, err = f.svc.SyncStock(ctx, testActor, &bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type busyLocker struct{}

func (busyLocker) Obtain(context.Context, string) (func(context.Context) error, error) {
	return nil, domain.ErrConflict
}

func TestSyncStock_ConflictoSiHayOtraEnCurso(t *testing.T) {
	store := memory.NewStore()
	svc := vault.NewService(vault.ServiceDeps{
		TxRunner:  store,
		Ledger:    store.Ledger(),
		Stock:     store.Stock(),
		Companies: store.Companies(),
		Locker:    busyLocker{},
	}, vault.Options{AtomicWrites: true})

	_, err := svc.SyncStock(context.Background(), testActor, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ──────────────────────────────────────────────────────────────────────────────
// Modos de escritura y deriva
// ──────────────────────────────────────────────────────────────────────────────

func TestModoAtomico_FalloDeStockNoDejaFilaEnElLibro(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	f.tx.setFailAdjust(true)

	_, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
		Type: entity.VaultDeposit, Amount: d("10"), Karat: 18,
	})
	require.ErrorIs(t, err, errStockDown)
	assert.NotErrorIs(t, err, domain.ErrProjectionDrift)

	txns, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns, "rollback del libro")
	f.tx.setFailAdjust(false)
	f.assertInvariant(t)
}

func TestModoDosFases_DerivaYRecuperacion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, vault.Options{AtomicWrites: false}, 0)
	kept := f.create(t, entity.VaultDeposit, "100", 24)

	f.tx.setFailAdjust(true)
	_, err := f.svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
		Type: entity.VaultWithdrawal, Amount: d("30"), Karat: 24,
	})
	require.ErrorIs(t, err, domain.ErrProjectionDrift)
	assert.ErrorIs(t, err, errStockDown, "la causa se conserva")

	txns, err := f.svc.ListTransactions(ctx, repository.VaultTransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2, "el libro no se deshace")

	err = f.svc.DeleteTransaction(ctx, testActor, kept.ID)
	require.ErrorIs(t, err, domain.ErrProjectionDrift)

	drifts, err := f.svc.VerifyStock(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, 24, drifts[0].Karat)
	assert.True(t, drifts[0].Stock.Equal(d("100")))
	assert.True(t, drifts[0].Ledger.Equal(d("-30")))

	f.tx.setFailAdjust(false)
	res, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	f.assertInvariant(t)
}

func TestModoDosFases_SinFallosMantieneInvariante(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, vault.Options{AtomicWrites: false}, 0)
	a := f.create(t, entity.VaultDeposit, "5", 18)
	f.create(t, entity.VaultWithdrawal, "2", 18)
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, a.ID))

	amount, _ := f.stockOf(t, 18)
	assert.True(t, amount.Equal(d("-2")), "el stock puede quedar negativo")
	f.assertInvariant(t)
}

// syncBetweenPhases lanza SyncStock justo antes de la segunda transacción de una mutación
// en dos fases y anota si la resincronización llegó a completarse entre ambas.
type syncBetweenPhases struct {
	store *memory.Store
	svc   *vault.Service

	mu      sync.Mutex
	armed   bool
	calls   int
	done    chan struct{}
	syncErr error
	between bool
}

func (r *syncBetweenPhases) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed, r.calls = true, 0
	r.done = make(chan struct{})
}

func (r *syncBetweenPhases) Run(ctx context.Context, fn func(repository.VaultTransactionRepository, repository.StockBalanceRepository) error) error {
	r.mu.Lock()
	trigger := false
	if r.armed {
		r.calls++
		if r.calls == 2 {
			r.armed = false
			trigger = true
		}
	}
	r.mu.Unlock()

	if trigger {
		started := make(chan struct{})
		go func() {
			close(started)
			_, err := r.svc.SyncStock(context.Background(), testActor, nil)
			r.mu.Lock()
			r.syncErr = err
			r.mu.Unlock()
			close(r.done)
		}()
		<-started
		time.Sleep(30 * time.Millisecond)
		select {
		case <-r.done:
			r.between = true
		default:
		}
	}
	return r.store.Run(ctx, fn)
}

func newInterleavedFixture(t *testing.T) (*fixture, *syncBetweenPhases) {
	t.Helper()
	store := memory.NewStore()
	runner := &syncBetweenPhases{store: store}
	svc := vault.NewService(vault.ServiceDeps{
		TxRunner:  runner,
		Ledger:    store.Ledger(),
		Stock:     store.Stock(),
		Companies: store.Companies(),
	}, vault.Options{AtomicWrites: false})
	runner.svc = svc
	return &fixture{svc: svc, store: store, events: &recordingBroadcaster{}}, runner
}

func TestModoDosFases_SyncNoSeIntercalaEnCreacion(t *testing.T) {
	f, runner := newInterleavedFixture(t)

	runner.arm()
	f.create(t, entity.VaultDeposit, "10", 18)
	<-runner.done

	require.NoError(t, runner.syncErr)
	assert.False(t, runner.between, "la sincronización espera a que termine la mutación")
	amount, ok := f.stockOf(t, 18)
	require.True(t, ok)
	assert.True(t, amount.Equal(d("10")), "sin doble conteo: %s", amount)
	f.assertInvariant(t)
}

func TestModoDosFases_SyncNoSeIntercalaEnBorrado(t *testing.T) {
	ctx := context.Background()
	f, runner := newInterleavedFixture(t)
	txn := f.create(t, entity.VaultDeposit, "10", 18)

	runner.arm()
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID))
	<-runner.done

	require.NoError(t, runner.syncErr)
	assert.False(t, runner.between)
	amount, ok := f.stockOf(t, 18)
	require.True(t, ok)
	assert.True(t, amount.IsZero(), "sin doble reversión: %s", amount)
	f.assertInvariant(t)
}

// ──────────────────────────────────────────────────────────────────────────────
// Colaboradores: auditoría y tiempo real
// ──────────────────────────────────────────────────────────────────────────────

func TestColaboradores_AuditoriaYEventos(t *testing.T) {
	ctx := context.Background()
	f := atomic(t)
	txn := f.create(t, entity.VaultDeposit, "10", 18)
	require.NoError(t, f.svc.DeleteTransaction(ctx, testActor, txn.ID))
	_, err := f.svc.SyncStock(ctx, testActor, nil)
	require.NoError(t, err)
	f.svc.Wait()

	assert.ElementsMatch(t, []string{
		vault.EventTransactionCreated, vault.EventStockUpdated,
		vault.EventTransactionDeleted, vault.EventStockUpdated,
		vault.EventStockUpdated,
	}, f.events.Events())

	page, err := audit.NewService(f.store.AuditLogs()).List(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	assert.Equal(t, vault.ActionStockSync, page.Logs[0].Action)
	assert.Equal(t, vault.ActionTransactionDeleted, page.Logs[1].Action)
	assert.Equal(t, "deposit: 10.00g (18k)", page.Logs[2].Details)
	assert.Equal(t, "admin", page.Logs[2].Username)
}

func TestColaboradores_FallosNoRompenLaOperacion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	auditMock := new(mockAudit)
	auditMock.On("Record", mock.Anything, mock.AnythingOfType("audit.Entry")).Return(errors.New("log caído"))
	events := &recordingBroadcaster{err: errors.New("redis caído")}

	svc := vault.NewService(vault.ServiceDeps{
		TxRunner:  store,
		Ledger:    store.Ledger(),
		Stock:     store.Stock(),
		Companies: store.Companies(),
		Audit:     auditMock,
		Events:    events,
	}, vault.Options{AtomicWrites: true})

	txn, err := svc.CreateTransaction(ctx, testActor, vault.CreateTransactionInput{
		Type: entity.VaultDeposit, Amount: d("1"), Karat: 14,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransaction(ctx, testActor, txn.ID))
	svc.Wait()

	auditMock.AssertNumberOfCalls(t, "Record", 2)
	assert.Len(t, events.Events(), 4)
}

func ptr(s string) *string { return &s }
