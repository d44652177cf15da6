package repository

import "github.com/jhoicas/stock-ledger-api/internal/domain/entity"

// StockAggregateRepository define el puerto del agregado materializado de stock.
// El agregado solo lo escribe el coordinador, dentro de sus transacciones.
type StockAggregateRepository interface {
	// Get lectura O(1); si la fila no existe devuelve la fila cero implícita.
	Get(tenantID, branchID, productID string) (*entity.StockAggregate, error)
	// GetForUpdate crea la fila si falta y la bloquea (FOR UPDATE). Este bloqueo
	// es el punto de serialización por clave del motor: dos operaciones sobre la
	// misma (tenant, branch, product) se ejecutan una detrás de otra, claves
	// distintas no se bloquean entre sí.
	GetForUpdate(tenantID, branchID, productID string) (*entity.StockAggregate, error)
	// ApplyDelta ajusta qty_on_hand. Rechaza (no recorta) cualquier delta que
	// dejaría qty_on_hand negativo: última defensa contra sobreventa.
	ApplyDelta(tenantID, branchID, productID string, qtyOnHandDelta int64) (*entity.StockAggregate, error)
}
