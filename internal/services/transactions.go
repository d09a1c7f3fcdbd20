package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// TransactionInput is the payload for creating a transaction in any of the
// three families.
type TransactionInput struct {
	Kind        models.TxnKind   `json:"kind"`
	AccountID   uuid.UUID        `json:"account_id"`
	TxnDate     models.Date      `json:"txn_date"`
	Amount      decimal.Decimal  `json:"amount"`
	Category    string           `json:"category,omitempty"`
	Bucket      string           `json:"bucket,omitempty"`
	Destination string           `json:"destination,omitempty"`
	SavingsType string           `json:"savings_type,omitempty"`
	Status      models.TxnStatus `json:"status,omitempty"`
	RecurringID *uuid.UUID       `json:"recurring_id,omitempty"`
	EMIID       *uuid.UUID       `json:"emi_id,omitempty"`
}

// TransactionUpdate is a partial update; nil fields are left unchanged.
type TransactionUpdate struct {
	AccountID   *uuid.UUID        `json:"account_id,omitempty"`
	TxnDate     *models.Date      `json:"txn_date,omitempty"`
	Amount      *decimal.Decimal  `json:"amount,omitempty"`
	Category    *string           `json:"category,omitempty"`
	Bucket      *string           `json:"bucket,omitempty"`
	Destination *string           `json:"destination,omitempty"`
	SavingsType *string           `json:"savings_type,omitempty"`
	Status      *models.TxnStatus `json:"status,omitempty"`
}

// TxnFilter narrows ListTransactions.
type TxnFilter struct {
	Kind        *models.TxnKind
	AccountID   *uuid.UUID
	MonthID     string
	RecurringID *uuid.UUID
	EMIID       *uuid.UUID
}

// CreateTransaction validates and stores a transaction; if it arrives
// already settled, its full signed effect is applied to the account once.
func (l *Ledger) CreateTransaction(in TransactionInput) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.createTransactionLocked(in)
	if err != nil {
		return nil, err
	}
	return cloneTxn(t), nil
}

// createTransactionLocked is the create path shared with the schedule
// generator. All validation happens before any state changes.
func (l *Ledger) createTransactionLocked(in TransactionInput) (*models.Transaction, error) {
	if !models.ValidTxnKind(in.Kind) {
		return nil, utils.ValidationErrorf("unknown transaction kind %q", in.Kind)
	}
	if _, ok := l.accounts[in.AccountID]; !ok {
		return nil, utils.ValidationErrorf("account %s does not exist", in.AccountID)
	}
	if !in.Amount.IsPositive() {
		return nil, utils.ValidationErrorf("amount must be positive, got %s", in.Amount)
	}
	if in.TxnDate.IsZero() {
		return nil, utils.ValidationErrorf("transaction date is required")
	}
	status := in.Status
	if status == "" {
		status = in.Kind.InitialStatus()
	}
	if !in.Kind.ValidStatus(status) {
		return nil, utils.ValidationErrorf("status %q is not valid for %s transactions", status, in.Kind)
	}
	if in.RecurringID != nil && in.EMIID != nil {
		return nil, utils.ValidationErrorf("a transaction cannot reference both a recurring template and an EMI")
	}
	if in.RecurringID != nil {
		if _, ok := l.recurring[*in.RecurringID]; !ok {
			return nil, utils.ValidationErrorf("recurring template %s does not exist", *in.RecurringID)
		}
	}
	if in.EMIID != nil {
		if _, ok := l.emis[*in.EMIID]; !ok {
			return nil, utils.ValidationErrorf("EMI %s does not exist", *in.EMIID)
		}
	}

	now := l.now()
	t := &models.Transaction{
		ID:          uuid.New(),
		Kind:        in.Kind,
		AccountID:   in.AccountID,
		TxnDate:     in.TxnDate,
		Amount:      in.Amount,
		Category:    in.Category,
		Bucket:      in.Bucket,
		Destination: in.Destination,
		SavingsType: in.SavingsType,
		Status:      status,
		RecurringID: in.RecurringID,
		EMIID:       in.EMIID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.txns[t.ID] = t

	if err := l.adjustBalance(t.AccountID, settlementEffect(t)); err != nil {
		delete(l.txns, t.ID)
		return nil, err
	}
	l.persist(txnKey(t.ID), t)
	return t, nil
}

// GetTransaction returns a copy of the transaction.
func (l *Ledger) GetTransaction(id uuid.UUID) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok {
		return nil, utils.NotFoundErrorf("transaction %s", id)
	}
	return cloneTxn(t), nil
}

// ListTransactions returns matching transactions sorted by date, then
// creation time.
func (l *Ledger) ListTransactions(f TxnFilter) []*models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.Transaction, 0)
	for _, t := range l.txns {
		if f.Kind != nil && t.Kind != *f.Kind {
			continue
		}
		if f.AccountID != nil && t.AccountID != *f.AccountID {
			continue
		}
		if f.MonthID != "" && t.TxnDate.MonthID() != f.MonthID {
			continue
		}
		if f.RecurringID != nil && (t.RecurringID == nil || *t.RecurringID != *f.RecurringID) {
			continue
		}
		if f.EMIID != nil && (t.EMIID == nil || *t.EMIID != *f.EMIID) {
			continue
		}
		out = append(out, cloneTxn(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TxnDate.Equal(out[j].TxnDate.Time) {
			return out[i].TxnDate.Before(out[j].TxnDate.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// UpdateTransaction applies a partial update and keeps the referenced
// account balances delta-correct. When the account changes, the old effect
// is reversed on the old account and the new effect applied on the new one
// as two independent adjustments; otherwise a single delta of
// newEffect − oldEffect is applied.
func (l *Ledger) UpdateTransaction(id uuid.UUID, upd TransactionUpdate) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.txns[id]
	if !ok {
		return nil, utils.NotFoundErrorf("transaction %s", id)
	}

	// Validate everything before mutating anything.
	newAccountID := t.AccountID
	if upd.AccountID != nil {
		newAccountID = *upd.AccountID
		if _, ok := l.accounts[newAccountID]; !ok {
			return nil, utils.ValidationErrorf("account %s does not exist", newAccountID)
		}
	}
	newAmount := t.Amount
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return nil, utils.ValidationErrorf("amount must be positive, got %s", upd.Amount)
		}
		newAmount = *upd.Amount
	}
	newStatus := t.Status
	if upd.Status != nil {
		if !t.Kind.ValidStatus(*upd.Status) {
			return nil, utils.ValidationErrorf("status %q is not valid for %s transactions", *upd.Status, t.Kind)
		}
		newStatus = *upd.Status
	}
	if upd.TxnDate != nil && upd.TxnDate.IsZero() {
		return nil, utils.ValidationErrorf("transaction date cannot be empty")
	}

	oldEffect := settlementEffect(t)
	oldAccountID := t.AccountID

	t.AccountID = newAccountID
	t.Amount = newAmount
	t.Status = newStatus
	if upd.TxnDate != nil {
		t.TxnDate = *upd.TxnDate
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Bucket != nil {
		t.Bucket = *upd.Bucket
	}
	if upd.Destination != nil {
		t.Destination = *upd.Destination
	}
	if upd.SavingsType != nil {
		t.SavingsType = *upd.SavingsType
	}
	t.UpdatedAt = l.now()

	newEffect := settlementEffect(t)
	if oldAccountID != newAccountID {
		if err := l.adjustBalance(oldAccountID, oldEffect.Neg()); err != nil {
			return nil, err
		}
		if err := l.adjustBalance(newAccountID, newEffect); err != nil {
			return nil, err
		}
	} else {
		if err := l.adjustBalance(newAccountID, newEffect.Sub(oldEffect)); err != nil {
			return nil, err
		}
	}

	l.persist(txnKey(t.ID), t)
	return cloneTxn(t), nil
}

// DeleteTransaction removes a transaction, reversing its settlement effect
// first if it was settled.
func (l *Ledger) DeleteTransaction(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleteTransactionLocked(id)
}

func (l *Ledger) deleteTransactionLocked(id uuid.UUID) error {
	t, ok := l.txns[id]
	if !ok {
		return utils.NotFoundErrorf("transaction %s", id)
	}
	if err := l.adjustBalance(t.AccountID, settlementEffect(t).Neg()); err != nil {
		return err
	}
	delete(l.txns, id)
	l.persistDelete(txnKey(id))
	return nil
}
