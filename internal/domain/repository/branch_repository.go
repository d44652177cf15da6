package repository

import "github.com/jhoicas/stock-ledger-api/internal/domain/entity"

// BranchRepository define el puerto de persistencia para Branch (DIP).
type BranchRepository interface {
	Create(branch *entity.Branch) error
	GetByID(id string) (*entity.Branch, error)
	ListByTenant(tenantID string, limit, offset int) ([]*entity.Branch, error)
	Update(branch *entity.Branch) error
}
