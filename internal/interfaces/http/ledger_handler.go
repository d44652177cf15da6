package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger-api/internal/application/dto"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
)

// LedgerHandler expone la consulta paginada del libro de movimientos.
type LedgerHandler struct {
	query *stock.LedgerQuery
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(query *stock.LedgerQuery) *LedgerHandler {
	return &LedgerHandler{query: query}
}

// List godoc
// @Summary      Consultar el libro de movimientos de un producto
// @Description  Orden (occurred_at desc, id desc) con paginación por cursor opaco
// @Tags         ledger
// @Produce      json
// @Param        product_id query string true  "ID de producto"
// @Param        branch_id  query string false "Filtrar por sucursal"
// @Param        kind       query string false "RECEIPT|ADJUSTMENT|CONSUMPTION|REVERSAL"
// @Param        min_qty    query int    false "qty_delta mínimo (con signo)"
// @Param        max_qty    query int    false "qty_delta máximo (con signo)"
// @Param        from       query string false "occurred_at desde (RFC3339)"
// @Param        to         query string false "occurred_at hasta (RFC3339)"
// @Param        cursor     query string false "Cursor de la página anterior"
// @Param        limit      query int    false "Tamaño de página (1..100, default 20)"
// @Success      200 {object} dto.LedgerListResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stock/ledger [get]
func (h *LedgerHandler) List(c *fiber.Ctx) error {
	in := stock.LedgerListInput{
		TenantID:  GetTenantID(c),
		ProductID: c.Query("product_id"),
		BranchID:  optionalQuery(c, "branch_id"),
		Kind:      optionalQuery(c, "kind"),
		Cursor:    c.Query("cursor"),
	}

	var err error
	if in.MinQty, err = optionalInt64(c, "min_qty"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "min_qty inválido"})
	}
	if in.MaxQty, err = optionalInt64(c, "max_qty"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "max_qty inválido"})
	}
	if in.From, err = optionalTime(c, "from"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
	}
	if in.To, err = optionalTime(c, "to"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
	}
	if raw := c.Query("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "limit inválido"})
		}
		in.Limit = limit
	}

	page, err := h.query.List(in)
	if err != nil {
		return stockError(c, err)
	}
	items := make([]dto.LedgerEntryResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toEntryResponse(e))
	}
	return c.JSON(dto.LedgerListResponse{
		Items: items,
		PageInfo: dto.PageInfo{
			HasNextPage: page.PageInfo.HasNextPage,
			NextCursor:  page.PageInfo.NextCursor,
		},
	})
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalInt64(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
