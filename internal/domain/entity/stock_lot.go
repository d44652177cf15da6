package entity

import "time"

// StockLot representa una recepción discreta de stock con su propio contador de
// cantidad restante. Los lotes se consumen en orden FIFO por (received_at, id).
// QtyRemaining solo decrece; un lote agotado (QtyRemaining = 0) nunca se borra:
// queda como registro histórico.
type StockLot struct {
	ID            string
	TenantID      string
	BranchID      string
	ProductID     string
	QtyReceived   int64  // inmutable, > 0
	QtyRemaining  int64  // 0 <= QtyRemaining <= QtyReceived
	UnitCostPence *int64 // costo unitario en peniques; nil si no se registró
	ReceivedAt    time.Time
	CreatedAt     time.Time
}

// Depleted indica si el lote ya no tiene unidades disponibles.
func (l *StockLot) Depleted() bool {
	return l.QtyRemaining <= 0
}

// Untouched indica si el lote no ha sufrido ningún consumo (reversible).
func (l *StockLot) Untouched() bool {
	return l.QtyRemaining == l.QtyReceived
}
