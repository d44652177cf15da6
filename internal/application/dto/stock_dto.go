package dto

import "time"

// ReceiveStockRequest body para POST /api/stock/receive.
type ReceiveStockRequest struct {
	BranchID      string     `json:"branch_id"`
	ProductID     string     `json:"product_id"`
	Qty           int64      `json:"qty"`
	UnitCostPence *int64     `json:"unit_cost_pence,omitempty"`
	SourceRef     *string    `json:"source_ref,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// AdjustStockRequest body para POST /api/stock/adjust.
// unit_cost_pence es obligatorio cuando qty_delta > 0.
type AdjustStockRequest struct {
	BranchID      string     `json:"branch_id"`
	ProductID     string     `json:"product_id"`
	QtyDelta      int64      `json:"qty_delta"`
	UnitCostPence *int64     `json:"unit_cost_pence,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// ConsumeStockRequest body para POST /api/stock/consume.
type ConsumeStockRequest struct {
	BranchID   string     `json:"branch_id"`
	ProductID  string     `json:"product_id"`
	Qty        int64      `json:"qty"`
	Reason     *string    `json:"reason,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// ReverseReceiptRequest body para POST /api/stock/reversals.
type ReverseReceiptRequest struct {
	LotID  string  `json:"lot_id"`
	Reason *string `json:"reason,omitempty"`
}

// StockLotResponse representación de un lote en respuestas.
type StockLotResponse struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ProductID     string    `json:"product_id"`
	QtyReceived   int64     `json:"qty_received"`
	QtyRemaining  int64     `json:"qty_remaining"`
	UnitCostPence *int64    `json:"unit_cost_pence,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// LedgerEntryResponse representación de un asiento del libro.
type LedgerEntryResponse struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branch_id"`
	ProductID   string    `json:"product_id"`
	LotID       *string   `json:"lot_id,omitempty"`
	Kind        string    `json:"kind"`
	QtyDelta    int64     `json:"qty_delta"`
	Reason      *string   `json:"reason,omitempty"`
	ActorUserID *string   `json:"actor_user_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// StockAggregateResponse totales actuales de la clave.
type StockAggregateResponse struct {
	BranchID     string    `json:"branch_id"`
	ProductID    string    `json:"product_id"`
	QtyOnHand    int64     `json:"qty_on_hand"`
	QtyAllocated int64     `json:"qty_allocated"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AffectedLotResponse toma FIFO aplicada a un lote.
type AffectedLotResponse struct {
	LotID         string `json:"lot_id"`
	Take          int64  `json:"take"`
	LedgerEntryID string `json:"ledger_entry_id"`
}

// ReceiveStockResponse respuesta de receive.
type ReceiveStockResponse struct {
	Lot         StockLotResponse       `json:"lot"`
	LedgerEntry LedgerEntryResponse    `json:"ledger_entry"`
	Aggregate   StockAggregateResponse `json:"aggregate"`
}

// AdjustStockResponse respuesta de adjust. Con delta positivo viene lot y
// ledger_entry_id; con delta negativo viene affected.
type AdjustStockResponse struct {
	Lot           *StockLotResponse      `json:"lot,omitempty"`
	LedgerEntryID string                 `json:"ledger_entry_id,omitempty"`
	Affected      []AffectedLotResponse  `json:"affected,omitempty"`
	Aggregate     StockAggregateResponse `json:"aggregate"`
}

// ConsumeStockResponse respuesta de consume.
type ConsumeStockResponse struct {
	Affected  []AffectedLotResponse  `json:"affected"`
	Aggregate StockAggregateResponse `json:"aggregate"`
}

// ReverseReceiptResponse respuesta de la reversa de recepción.
type ReverseReceiptResponse struct {
	Lot           StockLotResponse       `json:"lot"`
	LedgerEntryID string                 `json:"ledger_entry_id"`
	Aggregate     StockAggregateResponse `json:"aggregate"`
}

// StockLevelsResponse agregado + lotes abiertos (más antiguo primero) + valoración.
type StockLevelsResponse struct {
	Aggregate      StockAggregateResponse `json:"aggregate"`
	Lots           []StockLotResponse     `json:"lots"`
	TotalCostPence int64                  `json:"total_cost_pence"`
	AvgUnitCost    string                 `json:"avg_unit_cost"` // decimal serializado como string
}

// LedgerListResponse página del libro de movimientos.
type LedgerListResponse struct {
	Items    []LedgerEntryResponse `json:"items"`
	PageInfo PageInfo              `json:"pageInfo"`
}
