package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockLotRepository = (*StockLotRepo)(nil)

// StockLotRepo implementación de StockLotRepository sobre PostgreSQL (usable con pool o tx).
type StockLotRepo struct {
	q Querier
}

// NewStockLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewStockLotRepository(q Querier) *StockLotRepo {
	return &StockLotRepo{q: q}
}

const lotColumns = `id, tenant_id, branch_id, product_id, qty_received, qty_remaining, unit_cost_pence, received_at, created_at`

// Create persiste un lote nuevo.
func (r *StockLotRepo) Create(lot *entity.StockLot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_lots (` + lotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(context.Background(), query,
		lot.ID, lot.TenantID, lot.BranchID, lot.ProductID,
		lot.QtyReceived, lot.QtyRemaining, lot.UnitCostPence,
		lot.ReceivedAt, lot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create stock lot: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por ID dentro del tenant. Devuelve nil si no existe.
func (r *StockLotRepo) GetByID(tenantID, lotID string) (*entity.StockLot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM stock_lots WHERE tenant_id = $1 AND id = $2`
	lot, err := scanLot(r.q.QueryRow(context.Background(), query, tenantID, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock lot: %w", err)
	}
	return lot, nil
}

// ListOpenForUpdate bloquea y devuelve los lotes abiertos de la clave en orden
// FIFO (received_at asc, id asc como desempate). Solo tiene sentido dentro de
// una transacción.
func (r *StockLotRepo) ListOpenForUpdate(tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM stock_lots
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3 AND qty_remaining > 0
		ORDER BY received_at ASC, id ASC
		FOR UPDATE`
	return r.listLots(query, tenantID, branchID, productID)
}

// ListOpen versión de lectura sin bloqueo, para levels() y reconciliación.
func (r *StockLotRepo) ListOpen(tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM stock_lots
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3 AND qty_remaining > 0
		ORDER BY received_at ASC, id ASC`
	return r.listLots(query, tenantID, branchID, productID)
}

// ApplyTake descuenta qtyTaken del lote con guarda de monotonicidad: la fila
// solo se actualiza si qty_remaining alcanza. Cero filas afectadas significa
// que otro actor agotó el lote primero.
func (r *StockLotRepo) ApplyTake(tenantID, lotID string, qtyTaken int64) error {
	if qtyTaken <= 0 {
		return domain.ErrInvalidInput
	}
	query := `
		UPDATE stock_lots
		SET qty_remaining = qty_remaining - $3
		WHERE tenant_id = $1 AND id = $2 AND qty_remaining >= $3`
	tag, err := r.q.Exec(context.Background(), query, tenantID, lotID, qtyTaken)
	if err != nil {
		return fmt.Errorf("apply take: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// Deplete deja el lote en cero solo si sigue intacto (reversa de recepción).
func (r *StockLotRepo) Deplete(tenantID, lotID string) error {
	query := `
		UPDATE stock_lots
		SET qty_remaining = 0
		WHERE tenant_id = $1 AND id = $2 AND qty_remaining = qty_received`
	tag, err := r.q.Exec(context.Background(), query, tenantID, lotID)
	if err != nil {
		return fmt.Errorf("deplete lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *StockLotRepo) listLots(query string, args ...any) ([]*entity.StockLot, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock lots: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock lot: %w", err)
		}
		list = append(list, lot)
	}
	return list, rows.Err()
}

func scanLot(row pgx.Row) (*entity.StockLot, error) {
	var l entity.StockLot
	err := row.Scan(
		&l.ID, &l.TenantID, &l.BranchID, &l.ProductID,
		&l.QtyReceived, &l.QtyRemaining, &l.UnitCostPence,
		&l.ReceivedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
