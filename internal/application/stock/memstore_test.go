package stock_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/domain"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// memStore almacén en memoria para ejercitar el coordinador sin PostgreSQL.
// El mutex del TxRunner emula el bloqueo de fila del agregado: las operaciones
// se serializan igual que con SELECT FOR UPDATE sobre una única clave.
type memStore struct {
	mu      sync.Mutex
	lots    map[string]*entity.StockLot
	entries []*entity.LedgerEntry
	aggs    map[string]*entity.StockAggregate
}

func newMemStore() *memStore {
	return &memStore{
		lots: make(map[string]*entity.StockLot),
		aggs: make(map[string]*entity.StockAggregate),
	}
}

func aggKey(tenantID, branchID, productID string) string {
	return tenantID + "/" + branchID + "/" + productID
}

type memSnapshot struct {
	lots    map[string]*entity.StockLot
	entries []*entity.LedgerEntry
	aggs    map[string]*entity.StockAggregate
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		lots:    make(map[string]*entity.StockLot, len(s.lots)),
		entries: make([]*entity.LedgerEntry, len(s.entries)),
		aggs:    make(map[string]*entity.StockAggregate, len(s.aggs)),
	}
	for id, lot := range s.lots {
		cp := *lot
		snap.lots[id] = &cp
	}
	copy(snap.entries, s.entries)
	for k, a := range s.aggs {
		cp := *a
		snap.aggs[k] = &cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.lots = snap.lots
	s.entries = snap.entries
	s.aggs = snap.aggs
}

// memTxRunner implementa stock.TxRunner con rollback por snapshot.
type memTxRunner struct {
	store *memStore
}

var _ stock.TxRunner = (*memTxRunner)(nil)

func (r *memTxRunner) Run(_ context.Context, fn func(
	lotRepo repository.StockLotRepository,
	ledgerRepo repository.StockLedgerRepository,
	aggRepo repository.StockAggregateRepository,
) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snap := r.store.snapshot()
	err := fn(&memLotRepo{store: r.store}, &memLedgerRepo{store: r.store}, &memAggRepo{store: r.store})
	if err != nil {
		r.store.restore(snap)
	}
	return err
}

// conflictTxRunner falla con ErrTxConflict las primeras n ejecuciones.
type conflictTxRunner struct {
	inner     stock.TxRunner
	conflicts int
	calls     int
}

func (r *conflictTxRunner) Run(ctx context.Context, fn func(
	lotRepo repository.StockLotRepository,
	ledgerRepo repository.StockLedgerRepository,
	aggRepo repository.StockAggregateRepository,
) error) error {
	r.calls++
	if r.calls <= r.conflicts {
		return domain.ErrTxConflict
	}
	return r.inner.Run(ctx, fn)
}

// ──────────────────────────────────────────────────────────────────────────────
// Repositorios en memoria
// ──────────────────────────────────────────────────────────────────────────────

type memLotRepo struct {
	store *memStore
}

var _ repository.StockLotRepository = (*memLotRepo)(nil)

func (r *memLotRepo) Create(lot *entity.StockLot) error {
	cp := *lot
	r.store.lots[lot.ID] = &cp
	return nil
}

func (r *memLotRepo) GetByID(tenantID, lotID string) (*entity.StockLot, error) {
	lot, ok := r.store.lots[lotID]
	if !ok || lot.TenantID != tenantID {
		return nil, nil
	}
	cp := *lot
	return &cp, nil
}

func (r *memLotRepo) listOpen(tenantID, branchID, productID string) []*entity.StockLot {
	var open []*entity.StockLot
	for _, lot := range r.store.lots {
		if lot.TenantID == tenantID && lot.BranchID == branchID &&
			lot.ProductID == productID && lot.QtyRemaining > 0 {
			cp := *lot
			open = append(open, &cp)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].ReceivedAt.Equal(open[j].ReceivedAt) {
			return open[i].ReceivedAt.Before(open[j].ReceivedAt)
		}
		return open[i].ID < open[j].ID
	})
	return open
}

func (r *memLotRepo) ListOpenForUpdate(tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	return r.listOpen(tenantID, branchID, productID), nil
}

func (r *memLotRepo) ListOpen(tenantID, branchID, productID string) ([]*entity.StockLot, error) {
	return r.listOpen(tenantID, branchID, productID), nil
}

func (r *memLotRepo) ApplyTake(tenantID, lotID string, qtyTaken int64) error {
	lot, ok := r.store.lots[lotID]
	if !ok || lot.TenantID != tenantID || lot.QtyRemaining < qtyTaken {
		return domain.ErrInsufficientStock
	}
	lot.QtyRemaining -= qtyTaken
	return nil
}

func (r *memLotRepo) Deplete(tenantID, lotID string) error {
	lot, ok := r.store.lots[lotID]
	if !ok || lot.TenantID != tenantID || !lot.Untouched() {
		return domain.ErrConflict
	}
	lot.QtyRemaining = 0
	return nil
}

type memLedgerRepo struct {
	store *memStore
}

var _ repository.StockLedgerRepository = (*memLedgerRepo)(nil)

func (r *memLedgerRepo) AppendBatch(entries []*entity.LedgerEntry) error {
	for _, e := range entries {
		cp := *e
		r.store.entries = append(r.store.entries, &cp)
	}
	return nil
}

func (r *memLedgerRepo) ListForProduct(tenantID, productID string, f repository.LedgerFilter, afterID string, limit int) ([]*entity.LedgerEntry, error) {
	var matched []*entity.LedgerEntry
	for _, e := range r.store.entries {
		if e.TenantID != tenantID || e.ProductID != productID {
			continue
		}
		if f.BranchID != nil && e.BranchID != *f.BranchID {
			continue
		}
		if f.Kind != nil && e.Kind != *f.Kind {
			continue
		}
		if f.MinQty != nil && e.QtyDelta < *f.MinQty {
			continue
		}
		if f.MaxQty != nil && e.QtyDelta > *f.MaxQty {
			continue
		}
		if f.From != nil && e.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.OccurredAt.After(*f.To) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return strings.Compare(matched[i].ID, matched[j].ID) > 0
	})
	if afterID != "" {
		idx := -1
		for i, e := range matched {
			if e.ID == afterID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil
		}
		matched = matched[idx+1:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memLedgerRepo) SumForLot(tenantID, lotID string) (int64, error) {
	var sum int64
	for _, e := range r.store.entries {
		if e.TenantID == tenantID && e.LotID != nil && *e.LotID == lotID {
			sum += e.QtyDelta
		}
	}
	return sum, nil
}

type memAggRepo struct {
	store *memStore
}

var _ repository.StockAggregateRepository = (*memAggRepo)(nil)

func (r *memAggRepo) Get(tenantID, branchID, productID string) (*entity.StockAggregate, error) {
	agg, ok := r.store.aggs[aggKey(tenantID, branchID, productID)]
	if !ok {
		return &entity.StockAggregate{TenantID: tenantID, BranchID: branchID, ProductID: productID}, nil
	}
	cp := *agg
	return &cp, nil
}

func (r *memAggRepo) GetForUpdate(tenantID, branchID, productID string) (*entity.StockAggregate, error) {
	key := aggKey(tenantID, branchID, productID)
	agg, ok := r.store.aggs[key]
	if !ok {
		agg = &entity.StockAggregate{TenantID: tenantID, BranchID: branchID, ProductID: productID, UpdatedAt: time.Now()}
		r.store.aggs[key] = agg
	}
	cp := *agg
	return &cp, nil
}

func (r *memAggRepo) ApplyDelta(tenantID, branchID, productID string, qtyOnHandDelta int64) (*entity.StockAggregate, error) {
	key := aggKey(tenantID, branchID, productID)
	agg, ok := r.store.aggs[key]
	if !ok {
		agg = &entity.StockAggregate{TenantID: tenantID, BranchID: branchID, ProductID: productID}
		r.store.aggs[key] = agg
	}
	if agg.QtyOnHand+qtyOnHandDelta < 0 {
		return nil, domain.ErrInsufficientStock
	}
	agg.QtyOnHand += qtyOnHandDelta
	agg.UpdatedAt = time.Now()
	cp := *agg
	return &cp, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo fijo para validación de scope
// ──────────────────────────────────────────────────────────────────────────────

type memBranchRepo struct {
	branches map[string]*entity.Branch
}

var _ repository.BranchRepository = (*memBranchRepo)(nil)

func (r *memBranchRepo) Create(b *entity.Branch) error { r.branches[b.ID] = b; return nil }

func (r *memBranchRepo) GetByID(id string) (*entity.Branch, error) {
	return r.branches[id], nil
}

func (r *memBranchRepo) ListByTenant(tenantID string, limit, offset int) ([]*entity.Branch, error) {
	var list []*entity.Branch
	for _, b := range r.branches {
		if b.TenantID == tenantID {
			list = append(list, b)
		}
	}
	return list, nil
}

func (r *memBranchRepo) Update(b *entity.Branch) error { r.branches[b.ID] = b; return nil }

type memProductRepo struct {
	products map[string]*entity.Product
}

var _ repository.ProductRepository = (*memProductRepo)(nil)

func (r *memProductRepo) Create(p *entity.Product) error { r.products[p.ID] = p; return nil }

func (r *memProductRepo) GetByID(id string) (*entity.Product, error) {
	return r.products[id], nil
}

func (r *memProductRepo) GetBySKU(tenantID, sku string) (*entity.Product, error) {
	for _, p := range r.products {
		if p.TenantID == tenantID && p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memProductRepo) ListByTenant(tenantID string, limit, offset int) ([]*entity.Product, error) {
	var list []*entity.Product
	for _, p := range r.products {
		if p.TenantID == tenantID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (r *memProductRepo) Update(p *entity.Product) error { r.products[p.ID] = p; return nil }
