package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxnKind is one of the three transaction families.
type TxnKind string

const (
	TxnIncome  TxnKind = "income"
	TxnExpense TxnKind = "expense"
	TxnSavings TxnKind = "savings"
)

// ValidTxnKind reports whether k is a known transaction kind.
func ValidTxnKind(k TxnKind) bool {
	switch k {
	case TxnIncome, TxnExpense, TxnSavings:
		return true
	}
	return false
}

// TxnStatus is a variant-specific lifecycle status. Each kind has exactly
// one settled value; everything else contributes nothing to balances.
type TxnStatus string

const (
	StatusPending   TxnStatus = "pending"
	StatusReceived  TxnStatus = "received"  // income settled
	StatusPaid      TxnStatus = "paid"      // expense settled
	StatusCompleted TxnStatus = "completed" // savings settled
	StatusSkipped   TxnStatus = "skipped"   // savings only
)

// SettledStatus returns the status that counts toward account balance for
// this kind: Received for income, Paid for expense, Completed for savings.
func (k TxnKind) SettledStatus() TxnStatus {
	switch k {
	case TxnIncome:
		return StatusReceived
	case TxnExpense:
		return StatusPaid
	default:
		return StatusCompleted
	}
}

// InitialStatus is the unsettled status new transactions start in,
// including those materialized by the schedule generator.
func (k TxnKind) InitialStatus() TxnStatus {
	return StatusPending
}

// ValidStatus reports whether s is allowed for kind k.
func (k TxnKind) ValidStatus(s TxnStatus) bool {
	switch k {
	case TxnIncome:
		return s == StatusPending || s == StatusReceived
	case TxnExpense:
		return s == StatusPending || s == StatusPaid
	case TxnSavings:
		return s == StatusPending || s == StatusCompleted || s == StatusSkipped
	}
	return false
}

// Transaction is the shared shape of the three families. Category is used
// by income, Bucket by expense, Destination and SavingsType by savings.
// RecurringID and EMIID are mutually exclusive; a transaction carries at
// most one schedule reference.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Kind        TxnKind         `json:"kind"`
	AccountID   uuid.UUID       `json:"account_id"`
	TxnDate     Date            `json:"txn_date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Bucket      string          `json:"bucket,omitempty"`
	Destination string          `json:"destination,omitempty"`
	SavingsType string          `json:"savings_type,omitempty"`
	Status      TxnStatus       `json:"status"`
	RecurringID *uuid.UUID      `json:"recurring_id,omitempty"`
	EMIID       *uuid.UUID      `json:"emi_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Settled reports whether the transaction currently counts toward its
// account's balance.
func (t *Transaction) Settled() bool {
	return t.Status == t.Kind.SettledStatus()
}

// SignedAmount is the balance effect of the transaction if it were
// settled: positive for income, negative for expense and savings.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == TxnIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}
