//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// memStore is a small in-memory stand-in for Postgres used by unit tests.
// WithTx holds the store lock for the whole callback and restores a snapshot
// on error, giving serializable, all-or-nothing transactions. Because of that
// lock, races between transactions are exercised against Postgres in the
// integration tests of the postgres package; here they are forced with stubs.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]*model.Account
	ledger    []*model.LedgerTransaction
	templates map[string]*model.CouponTemplate
	coupons   map[string]*model.IssuedCoupon
	seq       int64

	appendErr error // used by tests to simulate a failing posting insert
}

type memTx struct{}

func newMemStore() *memStore {
	return &memStore{
		accounts:  map[string]*model.Account{},
		templates: map[string]*model.CouponTemplate{},
		coupons:   map[string]*model.IssuedCoupon{},
	}
}

// guard locks the store unless the caller already runs inside WithTx.
func (s *memStore) guard(tx repository.Tx) func() {
	if _, ok := tx.(*memTx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memSnapshot struct {
	accounts  map[string]model.Account
	ledgerLen int
	templates map[string]model.CouponTemplate
	coupons   map[string]model.IssuedCoupon
	seq       int64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts:  map[string]model.Account{},
		ledgerLen: len(s.ledger),
		templates: map[string]model.CouponTemplate{},
		coupons:   map[string]model.IssuedCoupon{},
		seq:       s.seq,
	}
	for k, v := range s.accounts {
		snap.accounts[k] = *v
	}
	for k, v := range s.templates {
		snap.templates[k] = *v
	}
	for k, v := range s.coupons {
		snap.coupons[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.accounts = map[string]*model.Account{}
	for k, v := range snap.accounts {
		cp := v
		s.accounts[k] = &cp
	}
	s.ledger = s.ledger[:snap.ledgerLen]
	s.templates = map[string]*model.CouponTemplate{}
	for k, v := range snap.templates {
		cp := v
		s.templates[k] = &cp
	}
	s.coupons = map[string]*model.IssuedCoupon{}
	for k, v := range snap.coupons {
		cp := v
		s.coupons[k] = &cp
	}
	s.seq = snap.seq
}

// --- TransactionManager ---

type memTxManager struct{ s *memStore }

func (m memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	hookCtx, runAfterCommit := repository.WithAfterCommit(ctx)
	m.s.mu.Lock()
	snap := m.s.snapshot()
	if err := fn(hookCtx, &memTx{}); err != nil {
		m.s.restore(snap)
		m.s.mu.Unlock()
		return err
	}
	m.s.mu.Unlock()
	runAfterCommit(ctx)
	return nil
}

// --- accounts ---

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	defer r.s.guard(tx)()
	for _, existing := range r.s.accounts {
		if existing.OwnerID == a.OwnerID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *a
	r.s.accounts[a.ID] = &cp
	return nil
}

func (r memAccounts) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	defer r.s.guard(tx)()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAccounts) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Account, error) {
	defer r.s.guard(tx)()
	for _, a := range r.s.accounts {
		if a.OwnerID == ownerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memAccounts) AdjustBalance(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	defer r.s.guard(tx)()
	a, ok := r.s.accounts[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if a.Balance+delta < 0 {
		return 0, domain.ErrInsufficientBalance
	}
	a.Balance += delta
	a.UpdatedAt = time.Now()
	return a.Balance, nil
}

// --- ledger ---

type memLedger struct{ s *memStore }

func (r memLedger) Append(ctx context.Context, tx repository.Tx, t *model.LedgerTransaction) error {
	defer r.s.guard(tx)()
	if r.s.appendErr != nil {
		return r.s.appendErr
	}
	r.s.seq++
	t.Seq = r.s.seq
	cp := *t
	r.s.ledger = append(r.s.ledger, &cp)
	return nil
}

func (r memLedger) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.LedgerTransaction, error) {
	defer r.s.guard(tx)()
	var out []*model.LedgerTransaction
	for i := len(r.s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.s.ledger[i]; e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memLedger) SumByAccount(ctx context.Context, tx repository.Tx, accountID string) (int64, error) {
	defer r.s.guard(tx)()
	var sum int64
	for _, e := range r.s.ledger {
		if e.AccountID == accountID {
			sum += e.Amount
		}
	}
	return sum, nil
}

// --- templates ---

type memTemplates struct{ s *memStore }

func (r memTemplates) Create(ctx context.Context, tx repository.Tx, t *model.CouponTemplate) error {
	defer r.s.guard(tx)()
	if _, ok := r.s.templates[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.s.templates[t.ID] = &cp
	return nil
}

func (r memTemplates) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
	defer r.s.guard(tx)()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTemplates) ListByMerchant(ctx context.Context, tx repository.Tx, merchantID string) ([]*model.CouponTemplate, error) {
	defer r.s.guard(tx)()
	var out []*model.CouponTemplate
	for _, t := range r.s.templates {
		if t.MerchantID == merchantID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memTemplates) DecrementRemaining(ctx context.Context, tx repository.Tx, id string) error {
	defer r.s.guard(tx)()
	t, ok := r.s.templates[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != model.TemplateStatusActive {
		return domain.ErrTemplateExpired
	}
	if t.RemainingQuantity <= 0 {
		return domain.ErrSoldOut
	}
	t.RemainingQuantity--
	return nil
}

func (r memTemplates) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
	defer r.s.guard(tx)()
	t, ok := r.s.templates[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

// --- issued coupons ---

type memCoupons struct{ s *memStore }

func (r memCoupons) Create(ctx context.Context, tx repository.Tx, c *model.IssuedCoupon) error {
	defer r.s.guard(tx)()
	for _, existing := range r.s.coupons {
		if existing.PassCode == c.PassCode {
			return domain.ErrAlreadyExists
		}
	}
	cp := *c
	r.s.coupons[c.ID] = &cp
	return nil
}

func (r memCoupons) join(c *model.IssuedCoupon) (*model.CouponWithTemplate, error) {
	t, ok := r.s.templates[c.TemplateID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cc, tc := *c, *t
	return &model.CouponWithTemplate{Coupon: &cc, Template: &tc}, nil
}

func (r memCoupons) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponWithTemplate, error) {
	defer r.s.guard(tx)()
	c, ok := r.s.coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.join(c)
}

func (r memCoupons) FindByPassCode(ctx context.Context, tx repository.Tx, passCode string) (*model.CouponWithTemplate, error) {
	defer r.s.guard(tx)()
	for _, c := range r.s.coupons {
		if c.PassCode == passCode {
			return r.join(c)
		}
	}
	return nil, domain.ErrNotFound
}

func (r memCoupons) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.CouponWithTemplate, error) {
	defer r.s.guard(tx)()
	var out []*model.CouponWithTemplate
	for _, c := range r.s.coupons {
		if c.UserID == userID {
			cw, err := r.join(c)
			if err != nil {
				return nil, err
			}
			out = append(out, cw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coupon.CreatedAt.After(out[j].Coupon.CreatedAt) })
	return out, nil
}

func (r memCoupons) CountByTemplate(ctx context.Context, tx repository.Tx, templateID string) (int, error) {
	defer r.s.guard(tx)()
	n := 0
	for _, c := range r.s.coupons {
		if c.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (r memCoupons) MarkUsed(ctx context.Context, tx repository.Tx, id string, usedAt time.Time) (bool, error) {
	defer r.s.guard(tx)()
	c, ok := r.s.coupons[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.Status != model.CouponStatusUnused {
		return false, nil
	}
	c.Status = model.CouponStatusUsed
	c.UsedAt = &usedAt
	return true, nil
}

// --- fixture wiring ---

type fixture struct {
	store      *memStore
	accounts   memAccounts
	ledgerRepo memLedger
	templates  memTemplates
	coupons    memCoupons
	tm         memTxManager

	ledger     *ledgerUC
	catalog    *catalogUC
	issuance   *issuanceUC
	redemption *redemptionUC
}

func newFixture() *fixture {
	s := newMemStore()
	f := &fixture{
		store:      s,
		accounts:   memAccounts{s},
		ledgerRepo: memLedger{s},
		templates:  memTemplates{s},
		coupons:    memCoupons{s},
		tm:         memTxManager{s},
	}
	f.ledger = NewLedgerUseCase(f.accounts, f.ledgerRepo, f.tm, nil)
	f.catalog = NewCatalogUseCase(f.templates, f.accounts, f.ledgerRepo, f.tm, nil)
	f.issuance = NewIssuanceUseCase(f.catalog, f.templates, f.coupons, f.accounts, f.ledgerRepo, f.tm, 5, nil)
	f.redemption = NewRedemptionUseCase(f.coupons, f.accounts, f.ledgerRepo, f.tm, true, nil)
	return f
}

// ledgerOf returns every posting of an account, oldest first.
func (f *fixture) ledgerOf(accountID string) []*model.LedgerTransaction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []*model.LedgerTransaction
	for _, e := range f.store.ledger {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// at pins the clock of every time-aware use case.
func (f *fixture) at(now time.Time) {
	clock := func() time.Time { return now }
	f.catalog.now = clock
	f.issuance.now = clock
	f.redemption.now = clock
}

func (f *fixture) templateCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.templates)
}
