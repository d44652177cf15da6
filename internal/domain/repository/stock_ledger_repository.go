package repository

import (
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// LedgerFilter filtros opcionales para el listado del libro de movimientos.
type LedgerFilter struct {
	BranchID *string
	Kind     *string
	MinQty   *int64 // rango sobre qty_delta (con signo)
	MaxQty   *int64
	From     *time.Time // ventana sobre occurred_at
	To       *time.Time
}

// StockLedgerRepository define el puerto de persistencia del libro append-only.
// Las entradas nunca se actualizan ni se borran.
type StockLedgerRepository interface {
	// AppendBatch escribe una o más entradas como lote atómico de una operación
	// del coordinador (todas dentro de la misma transacción).
	AppendBatch(entries []*entity.LedgerEntry) error
	// ListForProduct pagina por keyset (occurred_at desc, id desc). afterID es el
	// id de la última entrada vista (cursor); vacío = primera página. Devuelve
	// hasta limit+1 filas si el caller lo pide para resolver hasNextPage.
	ListForProduct(tenantID, productID string, f LedgerFilter, afterID string, limit int) ([]*entity.LedgerEntry, error)
	// SumForLot suma qty_delta de las entradas que referencian un lote
	// (verificación de la invariante lote/libro en reconciliación).
	SumForLot(tenantID, lotID string) (int64, error)
}
