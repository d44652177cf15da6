// Package audit emite los hechos de auditoría del motor de stock hacia el log
// estructurado. Un escritor de auditoría externo puede consumirlos desde ahí;
// el motor no persiste auditoría propia.
package audit

import (
	"context"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/pkg/logger"
)

var _ stock.AuditEmitter = (*LogEmitter)(nil)

// LogEmitter implementación de AuditEmitter sobre zerolog.
type LogEmitter struct {
	log *logger.Logger
}

// NewLogEmitter construye el emisor.
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

// StockMovementRecorded emite un hecho de movimiento ya confirmado.
func (e *LogEmitter) StockMovementRecorded(_ context.Context, fact stock.AuditFact) {
	e.log.Info().
		Str("audit", "stock_movement").
		Str("operation", fact.Operation).
		Str("tenant_id", fact.TenantID).
		Str("branch_id", fact.BranchID).
		Str("product_id", fact.ProductID).
		Int64("qty_delta", fact.QtyDelta).
		Strs("ledger_ids", fact.LedgerIDs).
		Str("actor_user_id", fact.ActorUserID).
		Msg("movimiento de stock registrado")
}
