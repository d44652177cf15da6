package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

var _ repository.StockLedgerRepository = (*StockLedgerRepo)(nil)

// StockLedgerRepo implementación del libro append-only sobre PostgreSQL.
// Solo inserta y lee; no existen UPDATE ni DELETE sobre stock_ledger.
type StockLedgerRepo struct {
	q Querier
}

// NewStockLedgerRepository construye el adaptador del libro. Pasar pool o tx (Querier).
func NewStockLedgerRepository(q Querier) *StockLedgerRepo {
	return &StockLedgerRepo{q: q}
}

const ledgerColumns = `id, tenant_id, branch_id, product_id, lot_id, kind, qty_delta, reason, actor_user_id, occurred_at, created_at`

// AppendBatch escribe las entradas de una operación del coordinador. Se llama
// dentro de la transacción de esa operación: o entran todas o ninguna.
func (r *StockLedgerRepo) AppendBatch(entries []*entity.LedgerEntry) error {
	query := `
		INSERT INTO stock_ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		_, err := r.q.Exec(context.Background(), query,
			e.ID, e.TenantID, e.BranchID, e.ProductID, e.LotID,
			e.Kind, e.QtyDelta, e.Reason, e.ActorUserID,
			e.OccurredAt, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
	}
	return nil
}

// ListForProduct pagina el libro por keyset (occurred_at desc, id desc).
// afterID es el id del último asiento visto; su occurred_at se resuelve con una
// consulta puntual para construir la condición de keyset.
func (r *StockLedgerRepo) ListForProduct(tenantID, productID string, f repository.LedgerFilter, afterID string, limit int) ([]*entity.LedgerEntry, error) {
	ctx := context.Background()
	query := `
		SELECT ` + ledgerColumns + `
		FROM stock_ledger WHERE tenant_id = $1 AND product_id = $2`
	args := []any{tenantID, productID}
	pos := 3

	if f.BranchID != nil {
		query += fmt.Sprintf(" AND branch_id = $%d", pos)
		args = append(args, *f.BranchID)
		pos++
	}
	if f.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", pos)
		args = append(args, *f.Kind)
		pos++
	}
	if f.MinQty != nil {
		query += fmt.Sprintf(" AND qty_delta >= $%d", pos)
		args = append(args, *f.MinQty)
		pos++
	}
	if f.MaxQty != nil {
		query += fmt.Sprintf(" AND qty_delta <= $%d", pos)
		args = append(args, *f.MaxQty)
		pos++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", pos)
		args = append(args, *f.From)
		pos++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", pos)
		args = append(args, *f.To)
		pos++
	}
	if afterID != "" {
		// Keyset: todas las filas estrictamente posteriores (en orden desc) al cursor
		query += fmt.Sprintf(` AND (occurred_at, id) < (
			SELECT occurred_at, id FROM stock_ledger WHERE tenant_id = $1 AND id = $%d)`, pos)
		args = append(args, afterID)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", pos)
	args = append(args, limit)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()
	var list []*entity.LedgerEntry
	for rows.Next() {
		var e entity.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.BranchID, &e.ProductID, &e.LotID,
			&e.Kind, &e.QtyDelta, &e.Reason, &e.ActorUserID,
			&e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// SumForLot suma qty_delta de las entradas de un lote (reconciliación).
func (r *StockLedgerRepo) SumForLot(tenantID, lotID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(qty_delta), 0)
		FROM stock_ledger WHERE tenant_id = $1 AND lot_id = $2`
	var sum int64
	err := r.q.QueryRow(context.Background(), query, tenantID, lotID).Scan(&sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sum ledger for lot: %w", err)
	}
	return sum, nil
}
