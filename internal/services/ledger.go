package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/kv"
	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// Key prefixes in the opaque key-value store.
const (
	accountKeyPrefix      = "account/"
	txnKeyPrefix          = "txn/"
	recurringKeyPrefix    = "recurring/"
	emiKeyPrefix          = "emi/"
	dueOverrideKeyPrefix  = "override/duedate/"
	cashOverrideKeyPrefix = "override/cash/"
)

// Ledger holds accounts, the three transaction collections, both schedule
// kinds and the report overrides. Every exported entry point serializes on
// one mutex, so multi-step sequences (the generator's check-then-create,
// the converter's insert-repoint-delete) observe no interleaved mutation.
//
// Balances are maintained incrementally: every transaction mutation applies
// a signed settlement delta to the referenced account (see balance.go).
type Ledger struct {
	mu  sync.Mutex
	log zerolog.Logger

	accounts  map[uuid.UUID]*models.Account
	txns      map[uuid.UUID]*models.Transaction
	recurring map[uuid.UUID]*models.RecurringTemplate
	emis      map[uuid.UUID]*models.EMI

	dueOverrides  map[models.DueDateOverrideKey]struct{}
	cashOverrides map[models.RemainingCashKey]*decimal.Decimal

	journal *Journal
	now     func() time.Time
}

// NewLedger creates an empty ledger. journal may be nil, in which case
// nothing is persisted.
func NewLedger(journal *Journal, log zerolog.Logger) *Ledger {
	return &Ledger{
		log:           log,
		accounts:      make(map[uuid.UUID]*models.Account),
		txns:          make(map[uuid.UUID]*models.Transaction),
		recurring:     make(map[uuid.UUID]*models.RecurringTemplate),
		emis:          make(map[uuid.UUID]*models.EMI),
		dueOverrides:  make(map[models.DueDateOverrideKey]struct{}),
		cashOverrides: make(map[models.RemainingCashKey]*decimal.Decimal),
		journal:       journal,
		now:           time.Now,
	}
}

// Load rehydrates the ledger from the key-value store. Called once on
// startup, before any traffic.
func (l *Ledger) Load(ctx context.Context, store kv.Store) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := store.List(ctx, accountKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	for key, raw := range entries {
		var a models.Account
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("corrupt account entry %s: %w", key, err)
		}
		l.accounts[a.ID] = &a
	}

	entries, err = store.List(ctx, txnKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	for key, raw := range entries {
		var t models.Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("corrupt transaction entry %s: %w", key, err)
		}
		l.txns[t.ID] = &t
	}

	entries, err = store.List(ctx, recurringKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load recurring templates: %w", err)
	}
	for key, raw := range entries {
		var r models.RecurringTemplate
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("corrupt recurring entry %s: %w", key, err)
		}
		l.recurring[r.ID] = &r
	}

	entries, err = store.List(ctx, emiKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load EMIs: %w", err)
	}
	for key, raw := range entries {
		var e models.EMI
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("corrupt EMI entry %s: %w", key, err)
		}
		l.emis[e.ID] = &e
	}

	entries, err = store.List(ctx, dueOverrideKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load due-date overrides: %w", err)
	}
	for key, raw := range entries {
		var k models.DueDateOverrideKey
		if err := json.Unmarshal(raw, &k); err != nil {
			return fmt.Errorf("corrupt due-date override entry %s: %w", key, err)
		}
		l.dueOverrides[k] = struct{}{}
	}

	entries, err = store.List(ctx, cashOverrideKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load remaining-cash overrides: %w", err)
	}
	for key, raw := range entries {
		var rec cashOverrideRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("corrupt remaining-cash override entry %s: %w", key, err)
		}
		l.cashOverrides[rec.Key] = rec.Value
	}

	l.log.Info().
		Int("accounts", len(l.accounts)).
		Int("transactions", len(l.txns)).
		Int("recurring", len(l.recurring)).
		Int("emis", len(l.emis)).
		Msg("ledger rehydrated")
	return nil
}

func (l *Ledger) persist(key string, v any) {
	if l.journal != nil {
		l.journal.Record(key, v)
	}
}

func (l *Ledger) persistDelete(key string) {
	if l.journal != nil {
		l.journal.RecordDelete(key)
	}
}

func accountKey(id uuid.UUID) string   { return accountKeyPrefix + id.String() }
func txnKey(id uuid.UUID) string       { return txnKeyPrefix + id.String() }
func recurringKey(id uuid.UUID) string { return recurringKeyPrefix + id.String() }
func emiKey(id uuid.UUID) string       { return emiKeyPrefix + id.String() }

func dueOverrideKey(k models.DueDateOverrideKey) string {
	return fmt.Sprintf("%s%s/%s/%s", dueOverrideKeyPrefix, k.MonthID, k.AccountID, k.Bucket)
}

func cashOverrideKey(k models.RemainingCashKey) string {
	return fmt.Sprintf("%s%s/%s", cashOverrideKeyPrefix, k.MonthID, k.AccountID)
}

// AccountInput is the payload for creating an account.
type AccountInput struct {
	Name           string             `json:"name"`
	BankName       string             `json:"bank_name"`
	Kind           models.AccountKind `json:"kind"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	CreditLimit    *decimal.Decimal   `json:"credit_limit,omitempty"`
}

// AccountUpdate is a partial update; nil fields are left unchanged. The
// balance is never set directly, it only moves through transaction
// settlement deltas.
type AccountUpdate struct {
	Name        *string             `json:"name,omitempty"`
	BankName    *string             `json:"bank_name,omitempty"`
	Kind        *models.AccountKind `json:"kind,omitempty"`
	CreditLimit *decimal.Decimal    `json:"credit_limit,omitempty"`
}

// CreateAccount validates and stores a new account.
func (l *Ledger) CreateAccount(in AccountInput) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in.Name == "" {
		return nil, utils.ValidationErrorf("account name is required")
	}
	if !models.ValidAccountKind(in.Kind) {
		return nil, utils.ValidationErrorf("unknown account kind %q", in.Kind)
	}
	if in.CreditLimit != nil && in.CreditLimit.IsNegative() {
		return nil, utils.ValidationErrorf("credit limit cannot be negative")
	}

	now := l.now()
	a := &models.Account{
		ID:             uuid.New(),
		Name:           in.Name,
		BankName:       in.BankName,
		Kind:           in.Kind,
		OpeningBalance: in.OpeningBalance,
		CurrentBalance: in.OpeningBalance,
		CreditLimit:    in.CreditLimit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	l.accounts[a.ID] = a
	l.persist(accountKey(a.ID), a)
	l.log.Info().Str("account", a.ID.String()).Str("name", a.Name).Msg("account created")
	return cloneAccount(a), nil
}

// GetAccount returns a copy of the account.
func (l *Ledger) GetAccount(id uuid.UUID) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[id]
	if !ok {
		return nil, utils.NotFoundErrorf("account %s", id)
	}
	return cloneAccount(a), nil
}

// ListAccounts returns all accounts sorted by name.
func (l *Ledger) ListAccounts() []*models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// UpdateAccount applies a partial update.
func (l *Ledger) UpdateAccount(id uuid.UUID, upd AccountUpdate) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[id]
	if !ok {
		return nil, utils.NotFoundErrorf("account %s", id)
	}
	if upd.Name != nil && *upd.Name == "" {
		return nil, utils.ValidationErrorf("account name cannot be empty")
	}
	if upd.Kind != nil && !models.ValidAccountKind(*upd.Kind) {
		return nil, utils.ValidationErrorf("unknown account kind %q", *upd.Kind)
	}
	if upd.CreditLimit != nil && upd.CreditLimit.IsNegative() {
		return nil, utils.ValidationErrorf("credit limit cannot be negative")
	}

	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.BankName != nil {
		a.BankName = *upd.BankName
	}
	if upd.Kind != nil {
		a.Kind = *upd.Kind
	}
	if upd.CreditLimit != nil {
		a.CreditLimit = upd.CreditLimit
	}
	a.UpdatedAt = l.now()
	l.persist(accountKey(a.ID), a)
	return cloneAccount(a), nil
}

// DeleteAccount removes an account. It fails closed while any transaction
// or schedule still references the account.
func (l *Ledger) DeleteAccount(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[id]; !ok {
		return utils.NotFoundErrorf("account %s", id)
	}
	for _, t := range l.txns {
		if t.AccountID == id {
			return utils.ReferentialErrorf("account %s has transactions", id)
		}
	}
	for _, r := range l.recurring {
		if r.AccountID == id {
			return utils.ReferentialErrorf("account %s has recurring templates", id)
		}
	}
	for _, e := range l.emis {
		if e.AccountID == id {
			return utils.ReferentialErrorf("account %s has EMIs", id)
		}
	}

	delete(l.accounts, id)
	l.persistDelete(accountKey(id))
	l.log.Info().Str("account", id.String()).Msg("account deleted")
	return nil
}

func copyDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

func cloneAccount(a *models.Account) *models.Account {
	cp := *a
	if a.CreditLimit != nil {
		v := *a.CreditLimit
		cp.CreditLimit = &v
	}
	return &cp
}

func cloneTxn(t *models.Transaction) *models.Transaction {
	cp := *t
	if t.RecurringID != nil {
		v := *t.RecurringID
		cp.RecurringID = &v
	}
	if t.EMIID != nil {
		v := *t.EMIID
		cp.EMIID = &v
	}
	return &cp
}

func cloneRecurring(r *models.RecurringTemplate) *models.RecurringTemplate {
	cp := *r
	if r.EndDate != nil {
		v := *r.EndDate
		cp.EndDate = &v
	}
	if r.DeductionDate != nil {
		v := *r.DeductionDate
		cp.DeductionDate = &v
	}
	return &cp
}

func cloneEMI(e *models.EMI) *models.EMI {
	cp := *e
	if e.DeductionDate != nil {
		v := *e.DeductionDate
		cp.DeductionDate = &v
	}
	return &cp
}
