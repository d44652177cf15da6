package entity

import "time"

// StockAggregate es la fila materializada de totales por (tenant, branch, product).
// QtyOnHand debe ser igual a la suma de QtyRemaining de todos los lotes de la clave;
// solo cambia como efecto de una operación del coordinador, nunca directamente.
type StockAggregate struct {
	TenantID     string
	BranchID     string
	ProductID    string
	QtyOnHand    int64 // >= 0 siempre
	QtyAllocated int64 // reservado pero no consumido (mecanismo de reservas aparte)
	UpdatedAt    time.Time
}
