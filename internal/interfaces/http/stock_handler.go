package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
)

// StockHandler expone las operaciones del motor de stock.
type StockHandler struct {
	coordinator *stock.Coordinator
}

// NewStockHandler construye el handler.
func NewStockHandler(coordinator *stock.Coordinator) *StockHandler {
	return &StockHandler{coordinator: coordinator}
}

// Receive godoc
// @Summary      Registrar recepción de stock
// @Description  Crea un lote nuevo, asienta RECEIPT en el libro y suma al agregado
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body dto.ReceiveStockRequest true "Recepción"
// @Success      201 {object} dto.ReceiveStockResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/receive [post]
func (h *StockHandler) Receive(c *fiber.Ctx) error {
	var req dto.ReceiveStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cuerpo inválido"})
	}
	result, err := h.coordinator.Receive(c.UserContext(), stock.ReceiveInput{
		TenantID:      GetTenantID(c),
		ActorUserID:   GetUserID(c),
		BranchID:      req.BranchID,
		ProductID:     req.ProductID,
		Qty:           req.Qty,
		UnitCostPence: req.UnitCostPence,
		SourceRef:     req.SourceRef,
		Reason:        req.Reason,
		OccurredAt:    req.OccurredAt,
	})
	if err != nil {
		return stockError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReceiveStockResponse{
		Lot:         toLotResponse(result.Lot),
		LedgerEntry: toEntryResponse(result.Entry),
		Aggregate:   toAggregateResponse(result.Aggregate),
	})
}

// Adjust godoc
// @Summary      Registrar ajuste manual
// @Description  Delta positivo crea lote con costo; delta negativo descuenta FIFO
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body dto.AdjustStockRequest true "Ajuste"
// @Success      201 {object} dto.AdjustStockResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/adjust [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	var req dto.AdjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cuerpo inválido"})
	}
	result, err := h.coordinator.Adjust(c.UserContext(), stock.AdjustInput{
		TenantID:      GetTenantID(c),
		ActorUserID:   GetUserID(c),
		BranchID:      req.BranchID,
		ProductID:     req.ProductID,
		QtyDelta:      req.QtyDelta,
		UnitCostPence: req.UnitCostPence,
		Reason:        req.Reason,
		OccurredAt:    req.OccurredAt,
	})
	if err != nil {
		return stockError(c, err)
	}
	resp := dto.AdjustStockResponse{
		Affected:  toAffectedResponses(result.Affected),
		Aggregate: toAggregateResponse(result.Aggregate),
	}
	if result.Lot != nil {
		lot := toLotResponse(result.Lot)
		resp.Lot = &lot
	}
	if result.Entry != nil {
		resp.LedgerEntryID = result.Entry.ID
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Consume godoc
// @Summary      Registrar consumo FIFO
// @Description  Descuenta qty de los lotes abiertos en orden FIFO, todo o nada
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body dto.ConsumeStockRequest true "Consumo"
// @Success      201 {object} dto.ConsumeStockResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/consume [post]
func (h *StockHandler) Consume(c *fiber.Ctx) error {
	var req dto.ConsumeStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cuerpo inválido"})
	}
	result, err := h.coordinator.Consume(c.UserContext(), stock.ConsumeInput{
		TenantID:    GetTenantID(c),
		ActorUserID: GetUserID(c),
		BranchID:    req.BranchID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		Reason:      req.Reason,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		return stockError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ConsumeStockResponse{
		Affected:  toAffectedResponses(result.Affected),
		Aggregate: toAggregateResponse(result.Aggregate),
	})
}

// ReverseReceipt godoc
// @Summary      Revertir una recepción errónea
// @Description  Solo si el lote sigue intacto; deja el lote en cero y asienta REVERSAL
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body dto.ReverseReceiptRequest true "Reversa"
// @Success      201 {object} dto.ReverseReceiptResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/reversals [post]
func (h *StockHandler) ReverseReceipt(c *fiber.Ctx) error {
	var req dto.ReverseReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cuerpo inválido"})
	}
	result, err := h.coordinator.ReverseReceipt(c.UserContext(), stock.ReverseReceiptInput{
		TenantID:    GetTenantID(c),
		ActorUserID: GetUserID(c),
		LotID:       req.LotID,
		Reason:      req.Reason,
	})
	if err != nil {
		return stockError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReverseReceiptResponse{
		Lot:           toLotResponse(result.Lot),
		LedgerEntryID: result.Entry.ID,
		Aggregate:     toAggregateResponse(result.Aggregate),
	})
}

// Levels godoc
// @Summary      Niveles actuales de una clave (sucursal, producto)
// @Description  Agregado, lotes abiertos FIFO y valoración; lectura sin bloqueo
// @Tags         stock
// @Produce      json
// @Param        branch_id  query string true "ID de sucursal"
// @Param        product_id query string true "ID de producto"
// @Success      200 {object} dto.StockLevelsResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/levels [get]
func (h *StockHandler) Levels(c *fiber.Ctx) error {
	branchID := c.Query("branch_id")
	productID := c.Query("product_id")
	if branchID == "" || productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "branch_id y product_id son obligatorios"})
	}
	result, err := h.coordinator.Levels(c.UserContext(), GetTenantID(c), branchID, productID)
	if err != nil {
		return stockError(c, err)
	}
	lots := make([]dto.StockLotResponse, 0, len(result.Lots))
	for _, lot := range result.Lots {
		lots = append(lots, toLotResponse(lot))
	}
	return c.JSON(dto.StockLevelsResponse{
		Aggregate:      toAggregateResponse(result.Aggregate),
		Lots:           lots,
		TotalCostPence: result.TotalCostPence,
		AvgUnitCost:    result.AvgUnitCost.StringFixed(4),
	})
}

// stockError mapea errores de dominio a respuestas HTTP.
func stockError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}

func toLotResponse(lot *entity.StockLot) dto.StockLotResponse {
	return dto.StockLotResponse{
		ID:            lot.ID,
		BranchID:      lot.BranchID,
		ProductID:     lot.ProductID,
		QtyReceived:   lot.QtyReceived,
		QtyRemaining:  lot.QtyRemaining,
		UnitCostPence: lot.UnitCostPence,
		ReceivedAt:    lot.ReceivedAt,
	}
}

func toEntryResponse(e *entity.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:          e.ID,
		BranchID:    e.BranchID,
		ProductID:   e.ProductID,
		LotID:       e.LotID,
		Kind:        e.Kind,
		QtyDelta:    e.QtyDelta,
		Reason:      e.Reason,
		ActorUserID: e.ActorUserID,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
	}
}

func toAggregateResponse(a *entity.StockAggregate) dto.StockAggregateResponse {
	return dto.StockAggregateResponse{
		BranchID:     a.BranchID,
		ProductID:    a.ProductID,
		QtyOnHand:    a.QtyOnHand,
		QtyAllocated: a.QtyAllocated,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toAffectedResponses(affected []stock.AffectedLot) []dto.AffectedLotResponse {
	out := make([]dto.AffectedLotResponse, 0, len(affected))
	for _, a := range affected {
		out = append(out, dto.AffectedLotResponse{
			LotID:         a.LotID,
			Take:          a.QtyTaken,
			LedgerEntryID: a.LedgerEntryID,
		})
	}
	return out
}
