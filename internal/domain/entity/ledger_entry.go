package entity

import "time"

// Tipos de movimiento del libro de stock.
const (
	LedgerKindReceipt     = "RECEIPT"     // recepción de mercancía
	LedgerKindAdjustment  = "ADJUSTMENT"  // ajuste manual (positivo o negativo)
	LedgerKindConsumption = "CONSUMPTION" // consumo/venta
	LedgerKindReversal    = "REVERSAL"    // reversa de una recepción errónea
)

// ValidLedgerKind verifica que el tipo pertenezca al catálogo.
func ValidLedgerKind(kind string) bool {
	switch kind {
	case LedgerKindReceipt, LedgerKindAdjustment, LedgerKindConsumption, LedgerKindReversal:
		return true
	}
	return false
}

// LedgerEntry representa un movimiento atómico de cantidad, append-only e
// inmutable una vez escrito. Es la fuente de verdad para auditoría y
// reconstrucción histórica, independiente del agregado materializado.
type LedgerEntry struct {
	ID          string
	TenantID    string
	BranchID    string
	ProductID   string
	LotID       *string // nil solo para correcciones puras de agregado
	Kind        string
	QtyDelta    int64 // positivo recepciones/ajustes+, negativo consumos/ajustes-
	Reason      *string
	ActorUserID *string
	OccurredAt  time.Time
	CreatedAt   time.Time
}
