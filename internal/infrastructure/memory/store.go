// Package memory implementa los repositorios en memoria. Se usa en tests y con
// STORAGE_DRIVER=memory; todas las transacciones se serializan con un único mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

var _ vault.TxRunner = (*Store)(nil)

// Store estado compartido de todos los repositorios en memoria.
type Store struct {
	mu sync.Mutex

	txns      map[string]entity.VaultTransaction
	stock     map[int]entity.StockBalance
	companies map[string]entity.Company
	users     map[string]entity.User
	transfers map[string]entity.Transfer
	logs      []entity.AuditLog

	now func() time.Time
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		txns:      make(map[string]entity.VaultTransaction),
		stock:     make(map[int]entity.StockBalance),
		companies: make(map[string]entity.Company),
		users:     make(map[string]entity.User),
		transfers: make(map[string]entity.Transfer),
		now:       time.Now,
	}
}

// Run ejecuta fn con el libro y el stock atados a una "transacción": el mutex se mantiene
// durante todo fn y, si fn devuelve error, se restauran ambas tablas.
func (s *Store) Run(ctx context.Context, fn func(
	ledger repository.VaultTransactionRepository,
	stock repository.StockBalanceRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txnsSnap := make(map[string]entity.VaultTransaction, len(s.txns))
	for k, v := range s.txns {
		txnsSnap[k] = v
	}
	stockSnap := make(map[int]entity.StockBalance, len(s.stock))
	for k, v := range s.stock {
		stockSnap[k] = v
	}

	if err := fn(&LedgerRepo{s: s, inTx: true}, &StockRepo{s: s, inTx: true}); err != nil {
		s.txns = txnsSnap
		s.stock = stockSnap
		return err
	}
	return nil
}

// Ledger repositorio del libro fuera de transacción.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Stock repositorio del stock fuera de transacción.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

// Companies repositorio de contrapartes.
func (s *Store) Companies() *CompanyRepo { return &CompanyRepo{s: s} }

// Users repositorio de usuarios.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Transfers repositorio de transferencias entre unidades.
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{s: s} }

// AuditLogs repositorio del registro de actividad.
func (s *Store) AuditLogs() *AuditLogRepo { return &AuditLogRepo{s: s} }

// OverwriteStock fija el saldo de un quilate saltándose el motor de conciliación.
// Simula una edición manual de la tabla (deriva) para ejercitar la resincronización.
func (s *Store) OverwriteStock(karat int, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[karat] = entity.StockBalance{Karat: karat, Amount: amount, UpdatedAt: s.now()}
}

// locked ejecuta fn con el mutex tomado salvo que ya lo tenga la transacción en curso.
func (s *Store) locked(inTx bool, fn func()) {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}
