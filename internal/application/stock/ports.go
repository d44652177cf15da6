package stock

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios
// atados a esa tx. Garantiza atomicidad para el motor de stock: lotes, libro y
// agregado se escriben juntos o no se escribe nada.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		lotRepo repository.StockLotRepository,
		ledgerRepo repository.StockLedgerRepository,
		aggRepo repository.StockAggregateRepository,
	) error) error
}

// AuditFact hecho emitido tras cada operación mutadora confirmada. Un escritor
// de auditoría externo puede persistirlo; el motor solo lo emite.
type AuditFact struct {
	Operation   string // receive | adjust | consume | reverse_receipt
	TenantID    string
	BranchID    string
	ProductID   string
	QtyDelta    int64
	LedgerIDs   []string
	ActorUserID string
}

// AuditEmitter puerto de emisión de hechos de auditoría. Las fallas del emisor
// no afectan a la operación ya confirmada.
type AuditEmitter interface {
	StockMovementRecorded(ctx context.Context, fact AuditFact)
}
