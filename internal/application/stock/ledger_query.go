package stock

import (
	"encoding/base64"
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

const (
	ledgerDefaultLimit = 20
	ledgerMaxLimit     = 100
)

// LedgerQuery caso de uso de consulta del libro de movimientos: filtros,
// paginación keyset hacia adelante y cursor opaco. Lectura pura; nunca bloquea
// a los escritores.
type LedgerQuery struct {
	ledgerRepo  repository.StockLedgerRepository
	productRepo repository.ProductRepository
}

// NewLedgerQuery construye el caso de uso (repos atados al pool, no a una tx).
func NewLedgerQuery(ledgerRepo repository.StockLedgerRepository, productRepo repository.ProductRepository) *LedgerQuery {
	return &LedgerQuery{ledgerRepo: ledgerRepo, productRepo: productRepo}
}

// LedgerListInput parámetros del listado.
type LedgerListInput struct {
	TenantID  string
	ProductID string
	BranchID  *string
	Kind      *string
	MinQty    *int64
	MaxQty    *int64
	From      *time.Time
	To        *time.Time
	Cursor    string // cursor opaco devuelto en la página anterior; vacío = primera
	Limit     int    // 1..100; 0 = default
}

// PageInfo metadatos de paginación hacia adelante.
type PageInfo struct {
	HasNextPage bool
	NextCursor  string
}

// LedgerPage página de asientos ordenada (occurred_at desc, id desc).
type LedgerPage struct {
	Items    []*entity.LedgerEntry
	PageInfo PageInfo
}

// List devuelve una página del libro para un producto del tenant. Se piden
// limit+1 filas para decidir hasNextPage con exactitud: una página que llena el
// límite justo con la última fila existente reporta hasNextPage=false.
func (q *LedgerQuery) List(in LedgerListInput) (*LedgerPage, error) {
	if in.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Kind != nil && !entity.ValidLedgerKind(*in.Kind) {
		return nil, domain.ErrInvalidInput
	}
	limit := in.Limit
	if limit <= 0 {
		limit = ledgerDefaultLimit
	}
	if limit > ledgerMaxLimit {
		return nil, domain.ErrInvalidInput
	}

	product, err := q.productRepo.GetByID(in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil || product.TenantID != in.TenantID {
		return nil, domain.ErrNotFound
	}

	afterID, err := decodeCursor(in.Cursor)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	filter := repository.LedgerFilter{
		BranchID: in.BranchID,
		Kind:     in.Kind,
		MinQty:   in.MinQty,
		MaxQty:   in.MaxQty,
		From:     in.From,
		To:       in.To,
	}
	rows, err := q.ledgerRepo.ListForProduct(in.TenantID, in.ProductID, filter, afterID, limit+1)
	if err != nil {
		return nil, err
	}

	page := &LedgerPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.PageInfo.HasNextPage = true
		page.PageInfo.NextCursor = encodeCursor(page.Items[limit-1].ID)
	}
	return page, nil
}

// El cursor es el id del último asiento visto, codificado en base64 para que el
// cliente lo trate como token opaco.
func encodeCursor(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
