package repository

import "github.com/jhoicas/stock-ledger-api/internal/domain/entity"

// StockLotRepository define el puerto de persistencia para lotes FIFO (DIP).
// Los métodos *ForUpdate solo tienen sentido dentro de una transacción del TxRunner.
type StockLotRepository interface {
	Create(lot *entity.StockLot) error
	GetByID(tenantID, lotID string) (*entity.StockLot, error)
	// ListOpenForUpdate devuelve los lotes abiertos (qty_remaining > 0) de la clave,
	// ordenados (received_at asc, id asc), bloqueando las filas (SELECT FOR UPDATE).
	ListOpenForUpdate(tenantID, branchID, productID string) ([]*entity.StockLot, error)
	// ListOpen versión de lectura (sin bloqueo) para levels().
	ListOpen(tenantID, branchID, productID string) ([]*entity.StockLot, error)
	// ApplyTake descuenta qtyTaken del lote. El descuento es monotónico: falla si
	// qty_remaining < qtyTaken (la fila nunca queda negativa ni se re-incrementa).
	ApplyTake(tenantID, lotID string, qtyTaken int64) error
	// Deplete deja el lote en cero (reversa de recepción no tocada).
	Deplete(tenantID, lotID string) error
}
