package stock

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// Take indica cuántas unidades se toman de un lote durante un consumo FIFO.
// QtyTaken siempre es > 0: los lotes con toma cero se omiten del plan.
type Take struct {
	LotID    string
	QtyTaken int64
}

// PlanTakes calcula el plan de consumo FIFO para qtyNeeded unidades sobre los
// lotes abiertos (QtyRemaining > 0) de una clave (tenant, branch, product).
// Ordena por (ReceivedAt asc, ID asc) y toma greedy del lote más antiguo primero.
// Si la suma de lo disponible no alcanza, retorna ErrInsufficientStock y ningún
// lote debe mutarse (todo-o-nada: el plan solo se aplica si es completo).
// Función pura: no modifica los lotes recibidos.
func PlanTakes(lots []*entity.StockLot, qtyNeeded int64) ([]Take, error) {
	if qtyNeeded <= 0 {
		return nil, domain.ErrInvalidInput
	}

	ordered := make([]*entity.StockLot, 0, len(lots))
	for _, l := range lots {
		if l.QtyRemaining > 0 {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ReceivedAt.Equal(ordered[j].ReceivedAt) {
			return ordered[i].ReceivedAt.Before(ordered[j].ReceivedAt)
		}
		return ordered[i].ID < ordered[j].ID // desempate estable por id
	})

	var takes []Take
	remaining := qtyNeeded
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		take := lot.QtyRemaining
		if take > remaining {
			take = remaining
		}
		takes = append(takes, Take{LotID: lot.ID, QtyTaken: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, domain.ErrInsufficientStock
	}
	return takes, nil
}

// Valuation valora los lotes abiertos: total en peniques y costo unitario
// promedio ponderado. Los lotes sin costo registrado no aportan al total pero
// sí cuentan unidades, por lo que el promedio refleja solo el costo conocido.
// El promedio puede ser fraccionario; se expone como decimal, nunca float.
func Valuation(lots []*entity.StockLot) (totalPence int64, avgUnitCost decimal.Decimal) {
	var qtyCosted int64
	for _, l := range lots {
		if l.QtyRemaining <= 0 || l.UnitCostPence == nil {
			continue
		}
		totalPence += l.QtyRemaining * (*l.UnitCostPence)
		qtyCosted += l.QtyRemaining
	}
	if qtyCosted == 0 {
		return 0, decimal.Zero
	}
	avgUnitCost = decimal.NewFromInt(totalPence).Div(decimal.NewFromInt(qtyCosted))
	return totalPence, avgUnitCost
}

// OpenSupply suma las unidades disponibles de los lotes abiertos.
func OpenSupply(lots []*entity.StockLot) int64 {
	var total int64
	for _, l := range lots {
		if l.QtyRemaining > 0 {
			total += l.QtyRemaining
		}
	}
	return total
}
