package entity

import "time"

// Branch representa una sucursal de un tenant.
type Branch struct {
	ID        string
	TenantID  string
	Name      string
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
