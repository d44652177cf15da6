package entity

import "time"

// Product representa un producto del catálogo de un tenant.
type Product struct {
	ID         string
	TenantID   string
	SKU        string
	Name       string
	Unit       string // unidad de medida: "unidad", "kg", "caja", ...
	PricePence int64  // precio de venta en peniques (unidades menores, nunca float)
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
