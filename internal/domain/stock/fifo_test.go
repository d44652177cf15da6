package stock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/stock"
)

func lot(id string, receivedAt time.Time, remaining int64, costPence *int64) *entity.StockLot {
	return &entity.StockLot{
		ID:            id,
		TenantID:      "t1",
		BranchID:      "b1",
		ProductID:     "p1",
		QtyReceived:   remaining,
		QtyRemaining:  remaining,
		UnitCostPence: costPence,
		ReceivedAt:    receivedAt,
	}
}

func pence(v int64) *int64 { return &v }

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// El lote más antiguo se consume primero y el siguiente solo aporta el resto.
func TestPlanTakes_ParcialSobreSegundoLote(t *testing.T) {
	lots := []*entity.StockLot{
		lot("lote-b", baseTime.Add(time.Hour), 50, nil),
		lot("lote-a", baseTime, 30, nil),
	}

	takes, err := stock.PlanTakes(lots, 40)
	require.NoError(t, err)

	require.Len(t, takes, 2)
	assert.Equal(t, stock.Take{LotID: "lote-a", QtyTaken: 30}, takes[0],
		"el lote más antiguo debe agotarse primero")
	assert.Equal(t, stock.Take{LotID: "lote-b", QtyTaken: 10}, takes[1],
		"el segundo lote solo aporta el resto")
}

// Consumo que agota exactamente el total disponible.
func TestPlanTakes_AgotamientoExacto(t *testing.T) {
	lots := []*entity.StockLot{
		lot("lote-a", baseTime, 30, nil),
		lot("lote-b", baseTime.Add(time.Hour), 20, nil),
	}

	takes, err := stock.PlanTakes(lots, 50)
	require.NoError(t, err)

	require.Len(t, takes, 2)
	assert.Equal(t, int64(30), takes[0].QtyTaken)
	assert.Equal(t, int64(20), takes[1].QtyTaken)
}

// Stock insuficiente: error y ningún lote mutado.
func TestPlanTakes_InsuficienteNoMutaNada(t *testing.T) {
	a := lot("lote-a", baseTime, 30, nil)
	b := lot("lote-b", baseTime.Add(time.Hour), 20, nil)

	_, err := stock.PlanTakes([]*entity.StockLot{a, b}, 51)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(30), a.QtyRemaining, "PlanTakes no debe mutar los lotes")
	assert.Equal(t, int64(20), b.QtyRemaining, "PlanTakes no debe mutar los lotes")
}

// Los lotes agotados no participan del plan.
func TestPlanTakes_OmiteLotesAgotados(t *testing.T) {
	depleted := lot("lote-viejo", baseTime, 100, nil)
	depleted.QtyRemaining = 0
	open := lot("lote-nuevo", baseTime.Add(time.Hour), 10, nil)

	takes, err := stock.PlanTakes([]*entity.StockLot{depleted, open}, 10)
	require.NoError(t, err)

	require.Len(t, takes, 1)
	assert.Equal(t, "lote-nuevo", takes[0].LotID)
}

// Empate de received_at: desempata por id ascendente, determinista.
func TestPlanTakes_EmpateDeFechaDesempataPorID(t *testing.T) {
	lots := []*entity.StockLot{
		lot("zz", baseTime, 10, nil),
		lot("aa", baseTime, 10, nil),
	}

	takes, err := stock.PlanTakes(lots, 15)
	require.NoError(t, err)

	require.Len(t, takes, 2)
	assert.Equal(t, "aa", takes[0].LotID)
	assert.Equal(t, int64(10), takes[0].QtyTaken)
	assert.Equal(t, "zz", takes[1].LotID)
	assert.Equal(t, int64(5), takes[1].QtyTaken)
}

// Cantidad no positiva es entrada inválida.
func TestPlanTakes_CantidadInvalida(t *testing.T) {
	lots := []*entity.StockLot{lot("lote-a", baseTime, 10, nil)}

	_, err := stock.PlanTakes(lots, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = stock.PlanTakes(lots, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Un plan nunca incluye tomas de cero unidades.
func TestPlanTakes_SinTomasDeCero(t *testing.T) {
	lots := []*entity.StockLot{
		lot("lote-a", baseTime, 30, nil),
		lot("lote-b", baseTime.Add(time.Hour), 50, nil),
	}

	takes, err := stock.PlanTakes(lots, 30)
	require.NoError(t, err)

	require.Len(t, takes, 1, "el segundo lote no se toca y no debe aparecer")
	for _, take := range takes {
		assert.Positive(t, take.QtyTaken)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Valuation
// ──────────────────────────────────────────────────────────────────────────────

func TestValuation_PromedioPonderado(t *testing.T) {
	lots := []*entity.StockLot{
		lot("lote-a", baseTime, 10, pence(100)),               // 1000
		lot("lote-b", baseTime.Add(time.Hour), 5, pence(220)), // 1100
	}

	total, avg := stock.Valuation(lots)

	assert.Equal(t, int64(2100), total)
	assert.Equal(t, "140", avg.String(), "promedio ponderado 2100/15")
}

func TestValuation_IgnoraLotesSinCostoYAgotados(t *testing.T) {
	noCost := lot("lote-sin-costo", baseTime, 10, nil)
	depleted := lot("lote-agotado", baseTime, 10, pence(500))
	depleted.QtyRemaining = 0
	costed := lot("lote-c", baseTime, 4, pence(250))

	total, avg := stock.Valuation([]*entity.StockLot{noCost, depleted, costed})

	assert.Equal(t, int64(1000), total)
	assert.Equal(t, "250", avg.String())
}

func TestValuation_SinLotesCosteados(t *testing.T) {
	total, avg := stock.Valuation([]*entity.StockLot{lot("lote-a", baseTime, 10, nil)})

	assert.Zero(t, total)
	assert.True(t, avg.IsZero())
}

func TestOpenSupply(t *testing.T) {
	depleted := lot("lote-agotado", baseTime, 10, nil)
	depleted.QtyRemaining = 0
	lots := []*entity.StockLot{
		lot("lote-a", baseTime, 30, nil),
		lot("lote-b", baseTime, 20, nil),
		depleted,
	}

	assert.Equal(t, int64(50), stock.OpenSupply(lots))
}
