package vault

import (
	"context"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción de BD con el libro y el stock atados a ella.
// Si fn devuelve error se hace Rollback; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ledger repository.VaultTransactionRepository,
		stock repository.StockBalanceRepository,
	) error) error
}

// SessionTxRunner TxRunner que puede fijar una sesión de BD con el lock compartido de la
// proyección tomado durante varias transacciones seguidas (modo dos fases). Mientras fn
// se ejecuta ninguna resincronización, de esta u otra réplica, puede tomar el lock exclusivo.
type SessionTxRunner interface {
	TxRunner
	WithSharedProjection(ctx context.Context, fn func(tx TxRunner) error) error
}

// AuditRecorder registro de actividad. Sus fallos nunca hacen fallar la operación.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Broadcaster difusión en tiempo real (best-effort, sin confirmación).
type Broadcaster interface {
	Publish(ctx context.Context, event string, payload any) error
}

// SyncLocker garantiza una sola resincronización de stock a la vez.
// Obtain devuelve domain.ErrConflict si otra resincronización tiene el lock.
type SyncLocker interface {
	Obtain(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// StockReportRenderer genera el reporte imprimible del stock.
type StockReportRenderer interface {
	RenderStock(ctx context.Context, rows []*entity.StockBalance, drifts []StockDrift) ([]byte, error)
}
