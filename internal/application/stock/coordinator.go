package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
	domstock "github.com/jhoicas/stock-ledger-api/internal/domain/stock"
)

// Coordinator orquesta las operaciones mutadoras del motor de stock (receive,
// adjust, consume, reverse) como unidades atómicas sobre lotes, libro y agregado.
// Lotes y libro solo se escriben a través de este coordinador.
//
// Serialización por clave: cada operación abre una transacción (TxRunner) y lo
// primero que hace es bloquear la fila del agregado de su (tenant, branch,
// product) con GetForUpdate. Dos consumos concurrentes de la misma clave se
// ejecutan en serie y no pueden sobrevender; claves distintas no se estorban.
type Coordinator struct {
	txRunner    TxRunner
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	lotRepo     repository.StockLotRepository       // lectura fuera de tx (levels)
	aggRepo     repository.StockAggregateRepository // lectura fuera de tx (levels)
	retry       RetryPolicy
	audit       AuditEmitter
}

// NewCoordinator construye el coordinador. audit puede ser nil (no se emite).
func NewCoordinator(
	txRunner TxRunner,
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	lotRepo repository.StockLotRepository,
	aggRepo repository.StockAggregateRepository,
	retry RetryPolicy,
	audit AuditEmitter,
) *Coordinator {
	return &Coordinator{
		txRunner:    txRunner,
		branchRepo:  branchRepo,
		productRepo: productRepo,
		lotRepo:     lotRepo,
		aggRepo:     aggRepo,
		retry:       retry,
		audit:       audit,
	}
}

// ReceiveInput entrada para registrar una recepción de stock.
type ReceiveInput struct {
	TenantID      string
	ActorUserID   string
	BranchID      string
	ProductID     string
	Qty           int64
	UnitCostPence *int64
	SourceRef     *string // referencia externa (orden de compra, albarán)
	Reason        *string
	OccurredAt    *time.Time
}

// ReceiveResult lote creado, asiento del libro y agregado tras la recepción.
type ReceiveResult struct {
	Lot       *entity.StockLot
	Entry     *entity.LedgerEntry
	Aggregate *entity.StockAggregate
}

// AdjustInput entrada para un ajuste manual (delta distinto de cero).
type AdjustInput struct {
	TenantID      string
	ActorUserID   string
	BranchID      string
	ProductID     string
	QtyDelta      int64
	UnitCostPence *int64 // obligatorio si QtyDelta > 0: todo aumento registra su costo
	Reason        *string
	OccurredAt    *time.Time
}

// AffectedLot una toma FIFO aplicada a un lote con su asiento asociado.
type AffectedLot struct {
	LotID         string
	QtyTaken      int64
	LedgerEntryID string
}

// AdjustResult resultado de un ajuste. Lot/Entry solo en ajustes positivos;
// Affected solo en negativos.
type AdjustResult struct {
	Lot       *entity.StockLot
	Entry     *entity.LedgerEntry
	Affected  []AffectedLot
	Aggregate *entity.StockAggregate
}

// ConsumeInput entrada para un consumo (salida FIFO).
type ConsumeInput struct {
	TenantID    string
	ActorUserID string
	BranchID    string
	ProductID   string
	Qty         int64
	Reason      *string
	OccurredAt  *time.Time
}

// ConsumeResult lotes afectados en orden FIFO y agregado resultante.
type ConsumeResult struct {
	Affected  []AffectedLot
	Aggregate *entity.StockAggregate
}

// ReverseReceiptInput entrada para revertir una recepción errónea.
type ReverseReceiptInput struct {
	TenantID    string
	ActorUserID string
	LotID       string
	Reason      *string
	OccurredAt  *time.Time
}

// ReverseReceiptResult lote revertido (en cero), asiento REVERSAL y agregado.
type ReverseReceiptResult struct {
	Lot       *entity.StockLot
	Entry     *entity.LedgerEntry
	Aggregate *entity.StockAggregate
}

// LevelsResult foto del agregado más los lotes abiertos (más antiguo primero)
// y su valoración FIFO.
type LevelsResult struct {
	Aggregate      *entity.StockAggregate
	Lots           []*entity.StockLot
	TotalCostPence int64
	AvgUnitCost    decimal.Decimal
}

// Receive crea un lote, un asiento RECEIPT (+qty) y suma qty al agregado, todo
// en una única transacción.
func (c *Coordinator) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if in.Qty <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if in.UnitCostPence != nil && *in.UnitCostPence < 0 {
		return nil, domain.ErrInvalidInput
	}
	if err := c.validateScope(in.TenantID, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}

	occurred := occurredOrNow(in.OccurredAt)
	var result *ReceiveResult
	err := c.retry.Do(ctx, func() error {
		return c.txRunner.Run(ctx, func(
			lotRepo repository.StockLotRepository,
			ledgerRepo repository.StockLedgerRepository,
			aggRepo repository.StockAggregateRepository,
		) error {
			// Bloquea la fila del agregado: serializa la clave frente a otras operaciones
			if _, err := aggRepo.GetForUpdate(in.TenantID, in.BranchID, in.ProductID); err != nil {
				return err
			}
			now := time.Now()
			lot := &entity.StockLot{
				ID:            uuid.New().String(),
				TenantID:      in.TenantID,
				BranchID:      in.BranchID,
				ProductID:     in.ProductID,
				QtyReceived:   in.Qty,
				QtyRemaining:  in.Qty,
				UnitCostPence: in.UnitCostPence,
				ReceivedAt:    occurred,
				CreatedAt:     now,
			}
			if err := lotRepo.Create(lot); err != nil {
				return err
			}
			entry := c.newEntry(in.TenantID, in.BranchID, in.ProductID, &lot.ID,
				entity.LedgerKindReceipt, in.Qty, receiveReason(in), in.ActorUserID, occurred, now)
			if err := ledgerRepo.AppendBatch([]*entity.LedgerEntry{entry}); err != nil {
				return err
			}
			agg, err := aggRepo.ApplyDelta(in.TenantID, in.BranchID, in.ProductID, in.Qty)
			if err != nil {
				return err
			}
			result = &ReceiveResult{Lot: lot, Entry: entry, Aggregate: agg}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.emit(ctx, "receive", in.TenantID, in.BranchID, in.ProductID, in.Qty, in.ActorUserID, result.Entry.ID)
	return result, nil
}

// Adjust aplica un ajuste manual. Positivo: como una recepción (exige costo).
// Negativo: toma FIFO de abs(delta) con un asiento ADJUSTMENT por lote afectado.
func (c *Coordinator) Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	if in.QtyDelta == 0 {
		return nil, domain.ErrInvalidInput
	}
	if in.QtyDelta > 0 && in.UnitCostPence == nil {
		// Aumentar stock exige registrar su costo
		return nil, domain.ErrInvalidInput
	}
	if in.UnitCostPence != nil && *in.UnitCostPence < 0 {
		return nil, domain.ErrInvalidInput
	}
	if err := c.validateScope(in.TenantID, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}

	occurred := occurredOrNow(in.OccurredAt)
	var result *AdjustResult
	err := c.retry.Do(ctx, func() error {
		return c.txRunner.Run(ctx, func(
			lotRepo repository.StockLotRepository,
			ledgerRepo repository.StockLedgerRepository,
			aggRepo repository.StockAggregateRepository,
		) error {
			if _, err := aggRepo.GetForUpdate(in.TenantID, in.BranchID, in.ProductID); err != nil {
				return err
			}
			now := time.Now()
			if in.QtyDelta > 0 {
				lot := &entity.StockLot{
					ID:            uuid.New().String(),
					TenantID:      in.TenantID,
					BranchID:      in.BranchID,
					ProductID:     in.ProductID,
					QtyReceived:   in.QtyDelta,
					QtyRemaining:  in.QtyDelta,
					UnitCostPence: in.UnitCostPence,
					ReceivedAt:    occurred,
					CreatedAt:     now,
				}
				if err := lotRepo.Create(lot); err != nil {
					return err
				}
				entry := c.newEntry(in.TenantID, in.BranchID, in.ProductID, &lot.ID,
					entity.LedgerKindAdjustment, in.QtyDelta, in.Reason, in.ActorUserID, occurred, now)
				if err := ledgerRepo.AppendBatch([]*entity.LedgerEntry{entry}); err != nil {
					return err
				}
				agg, err := aggRepo.ApplyDelta(in.TenantID, in.BranchID, in.ProductID, in.QtyDelta)
				if err != nil {
					return err
				}
				result = &AdjustResult{Lot: lot, Entry: entry, Aggregate: agg}
				return nil
			}

			affected, agg, err := c.depleteFifo(lotRepo, ledgerRepo, aggRepo,
				in.TenantID, in.BranchID, in.ProductID, -in.QtyDelta,
				entity.LedgerKindAdjustment, in.Reason, in.ActorUserID, occurred, now)
			if err != nil {
				return err
			}
			result = &AdjustResult{Affected: affected, Aggregate: agg}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	ids := resultEntryIDs(result)
	c.emit(ctx, "adjust", in.TenantID, in.BranchID, in.ProductID, in.QtyDelta, in.ActorUserID, ids...)
	return result, nil
}

// Consume registra una salida FIFO. Mecánica idéntica al ajuste negativo pero
// los asientos se marcan CONSUMPTION.
func (c *Coordinator) Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	if in.Qty <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if err := c.validateScope(in.TenantID, in.BranchID, in.ProductID); err != nil {
		return nil, err
	}

	occurred := occurredOrNow(in.OccurredAt)
	var result *ConsumeResult
	err := c.retry.Do(ctx, func() error {
		return c.txRunner.Run(ctx, func(
			lotRepo repository.StockLotRepository,
			ledgerRepo repository.StockLedgerRepository,
			aggRepo repository.StockAggregateRepository,
		) error {
			if _, err := aggRepo.GetForUpdate(in.TenantID, in.BranchID, in.ProductID); err != nil {
				return err
			}
			now := time.Now()
			affected, agg, err := c.depleteFifo(lotRepo, ledgerRepo, aggRepo,
				in.TenantID, in.BranchID, in.ProductID, in.Qty,
				entity.LedgerKindConsumption, in.Reason, in.ActorUserID, occurred, now)
			if err != nil {
				return err
			}
			result = &ConsumeResult{Affected: affected, Aggregate: agg}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Affected))
	for _, a := range result.Affected {
		ids = append(ids, a.LedgerEntryID)
	}
	c.emit(ctx, "consume", in.TenantID, in.BranchID, in.ProductID, -in.Qty, in.ActorUserID, ids...)
	return result, nil
}

// ReverseReceipt revierte una recepción errónea mientras el lote sigue intacto
// (qty_remaining == qty_received): deja el lote en cero, escribe un asiento
// REVERSAL por -qty_received y descuenta del agregado. Un lote ya consumido
// (aunque sea parcialmente) no es reversible: ErrConflict.
func (c *Coordinator) ReverseReceipt(ctx context.Context, in ReverseReceiptInput) (*ReverseReceiptResult, error) {
	if in.LotID == "" {
		return nil, domain.ErrInvalidInput
	}

	occurred := occurredOrNow(in.OccurredAt)
	var result *ReverseReceiptResult
	err := c.retry.Do(ctx, func() error {
		return c.txRunner.Run(ctx, func(
			lotRepo repository.StockLotRepository,
			ledgerRepo repository.StockLedgerRepository,
			aggRepo repository.StockAggregateRepository,
		) error {
			lot, err := lotRepo.GetByID(in.TenantID, in.LotID)
			if err != nil {
				return err
			}
			if lot == nil {
				return domain.ErrNotFound
			}
			// Bloquea el agregado de la clave del lote antes de tocar nada
			if _, err := aggRepo.GetForUpdate(lot.TenantID, lot.BranchID, lot.ProductID); err != nil {
				return err
			}
			if !lot.Untouched() {
				return domain.ErrConflict
			}
			if err := lotRepo.Deplete(lot.TenantID, lot.ID); err != nil {
				return err
			}
			now := time.Now()
			entry := c.newEntry(lot.TenantID, lot.BranchID, lot.ProductID, &lot.ID,
				entity.LedgerKindReversal, -lot.QtyReceived, in.Reason, in.ActorUserID, occurred, now)
			if err := ledgerRepo.AppendBatch([]*entity.LedgerEntry{entry}); err != nil {
				return err
			}
			agg, err := aggRepo.ApplyDelta(lot.TenantID, lot.BranchID, lot.ProductID, -lot.QtyReceived)
			if err != nil {
				return err
			}
			reversed := *lot
			reversed.QtyRemaining = 0
			result = &ReverseReceiptResult{Lot: &reversed, Entry: entry, Aggregate: agg}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.emit(ctx, "reverse_receipt", result.Lot.TenantID, result.Lot.BranchID, result.Lot.ProductID,
		-result.Lot.QtyReceived, in.ActorUserID, result.Entry.ID)
	return result, nil
}

// Levels lectura sin bloqueo para visibilidad del operador: agregado actual,
// lotes abiertos (más antiguo primero) y valoración FIFO. La foto es
// eventualmente consistente frente a escritores en curso; el camino de
// escritura nunca usa esta lectura.
func (c *Coordinator) Levels(ctx context.Context, tenantID, branchID, productID string) (*LevelsResult, error) {
	if err := c.validateScope(tenantID, branchID, productID); err != nil {
		return nil, err
	}
	agg, err := c.aggRepo.Get(tenantID, branchID, productID)
	if err != nil {
		return nil, err
	}
	lots, err := c.lotRepo.ListOpen(tenantID, branchID, productID)
	if err != nil {
		return nil, err
	}
	total, avg := domstock.Valuation(lots)
	return &LevelsResult{Aggregate: agg, Lots: lots, TotalCostPence: total, AvgUnitCost: avg}, nil
}

// depleteFifo toma qty unidades FIFO de los lotes abiertos bloqueados, escribe
// un asiento por lote afectado y descuenta del agregado. Si el plan no se puede
// satisfacer, corta con ErrInsufficientStock sin mutar nada (la tx hace rollback).
func (c *Coordinator) depleteFifo(
	lotRepo repository.StockLotRepository,
	ledgerRepo repository.StockLedgerRepository,
	aggRepo repository.StockAggregateRepository,
	tenantID, branchID, productID string,
	qty int64,
	kind string,
	reason *string,
	actorUserID string,
	occurred, now time.Time,
) ([]AffectedLot, *entity.StockAggregate, error) {
	lots, err := lotRepo.ListOpenForUpdate(tenantID, branchID, productID)
	if err != nil {
		return nil, nil, err
	}
	takes, err := domstock.PlanTakes(lots, qty)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]*entity.LedgerEntry, 0, len(takes))
	affected := make([]AffectedLot, 0, len(takes))
	for _, take := range takes {
		if err := lotRepo.ApplyTake(tenantID, take.LotID, take.QtyTaken); err != nil {
			return nil, nil, err
		}
		lotID := take.LotID
		entry := c.newEntry(tenantID, branchID, productID, &lotID,
			kind, -take.QtyTaken, reason, actorUserID, occurred, now)
		entries = append(entries, entry)
		affected = append(affected, AffectedLot{
			LotID:         take.LotID,
			QtyTaken:      take.QtyTaken,
			LedgerEntryID: entry.ID,
		})
	}
	if err := ledgerRepo.AppendBatch(entries); err != nil {
		return nil, nil, err
	}
	agg, err := aggRepo.ApplyDelta(tenantID, branchID, productID, -qty)
	if err != nil {
		return nil, nil, err
	}
	return affected, agg, nil
}

// validateScope verifica que sucursal y producto existan y pertenezcan al tenant.
func (c *Coordinator) validateScope(tenantID, branchID, productID string) error {
	branch, err := c.branchRepo.GetByID(branchID)
	if err != nil {
		return err
	}
	if branch == nil || branch.TenantID != tenantID {
		return domain.ErrNotFound
	}
	product, err := c.productRepo.GetByID(productID)
	if err != nil {
		return err
	}
	if product == nil || product.TenantID != tenantID {
		return domain.ErrNotFound
	}
	return nil
}

func (c *Coordinator) newEntry(
	tenantID, branchID, productID string,
	lotID *string,
	kind string,
	qtyDelta int64,
	reason *string,
	actorUserID string,
	occurred, now time.Time,
) *entity.LedgerEntry {
	var actor *string
	if actorUserID != "" {
		actor = &actorUserID
	}
	return &entity.LedgerEntry{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		BranchID:    branchID,
		ProductID:   productID,
		LotID:       lotID,
		Kind:        kind,
		QtyDelta:    qtyDelta,
		Reason:      reason,
		ActorUserID: actor,
		OccurredAt:  occurred,
		CreatedAt:   now,
	}
}

func (c *Coordinator) emit(ctx context.Context, op, tenantID, branchID, productID string, qtyDelta int64, actor string, ledgerIDs ...string) {
	if c.audit == nil {
		return
	}
	c.audit.StockMovementRecorded(ctx, AuditFact{
		Operation:   op,
		TenantID:    tenantID,
		BranchID:    branchID,
		ProductID:   productID,
		QtyDelta:    qtyDelta,
		LedgerIDs:   ledgerIDs,
		ActorUserID: actor,
	})
}

func occurredOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}

func receiveReason(in ReceiveInput) *string {
	if in.Reason != nil {
		return in.Reason
	}
	return in.SourceRef
}

func resultEntryIDs(r *AdjustResult) []string {
	if r.Entry != nil {
		return []string{r.Entry.ID}
	}
	ids := make([]string, 0, len(r.Affected))
	for _, a := range r.Affected {
		ids = append(ids, a.LedgerEntryID)
	}
	return ids
}
