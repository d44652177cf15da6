package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockAggregateRepository = (*StockAggregateRepo)(nil)

// StockAggregateRepo implementación del agregado materializado sobre PostgreSQL.
type StockAggregateRepo struct {
	q Querier
}

// NewStockAggregateRepository construye el adaptador del agregado. Pasar pool o tx (Querier).
func NewStockAggregateRepository(q Querier) *StockAggregateRepo {
	return &StockAggregateRepo{q: q}
}

const aggColumns = `tenant_id, branch_id, product_id, qty_on_hand, qty_allocated, updated_at`

// Get obtiene los totales actuales. Si la fila no existe devuelve la fila cero implícita.
func (r *StockAggregateRepo) Get(tenantID, branchID, productID string) (*entity.StockAggregate, error) {
	query := `
		SELECT ` + aggColumns + `
		FROM product_stock
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3`
	agg, err := scanAggregate(r.q.QueryRow(context.Background(), query, tenantID, branchID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zeroAggregate(tenantID, branchID, productID), nil
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}
	return agg, nil
}

// GetForUpdate crea la fila si falta y la bloquea (FOR UPDATE). El bloqueo de
// esta fila es lo que serializa las operaciones mutadoras de una misma clave.
func (r *StockAggregateRepo) GetForUpdate(tenantID, branchID, productID string) (*entity.StockAggregate, error) {
	ctx := context.Background()
	insert := `
		INSERT INTO product_stock (tenant_id, branch_id, product_id, qty_on_hand, qty_allocated, updated_at)
		VALUES ($1, $2, $3, 0, 0, now())
		ON CONFLICT (tenant_id, branch_id, product_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, tenantID, branchID, productID); err != nil {
		return nil, fmt.Errorf("ensure aggregate row: %w", err)
	}
	query := `
		SELECT ` + aggColumns + `
		FROM product_stock
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3
		FOR UPDATE`
	agg, err := scanAggregate(r.q.QueryRow(ctx, query, tenantID, branchID, productID))
	if err != nil {
		return nil, fmt.Errorf("get aggregate for update: %w", err)
	}
	return agg, nil
}

// ApplyDelta ajusta qty_on_hand con guarda de no-negatividad en el propio
// UPDATE: si el delta dejaría la fila negativa no se modifica nada y se
// devuelve ErrInsufficientStock (rechazo, nunca recorte).
func (r *StockAggregateRepo) ApplyDelta(tenantID, branchID, productID string, qtyOnHandDelta int64) (*entity.StockAggregate, error) {
	query := `
		UPDATE product_stock
		SET qty_on_hand = qty_on_hand + $4, updated_at = now()
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = $3
		  AND qty_on_hand + $4 >= 0
		RETURNING ` + aggColumns
	agg, err := scanAggregate(r.q.QueryRow(context.Background(), query, tenantID, branchID, productID, qtyOnHandDelta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInsufficientStock
		}
		return nil, fmt.Errorf("apply aggregate delta: %w", err)
	}
	return agg, nil
}

func scanAggregate(row pgx.Row) (*entity.StockAggregate, error) {
	var a entity.StockAggregate
	err := row.Scan(&a.TenantID, &a.BranchID, &a.ProductID, &a.QtyOnHand, &a.QtyAllocated, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func zeroAggregate(tenantID, branchID, productID string) *entity.StockAggregate {
	return &entity.StockAggregate{
		TenantID:  tenantID,
		BranchID:  branchID,
		ProductID: productID,
		UpdatedAt: time.Time{},
	}
}
