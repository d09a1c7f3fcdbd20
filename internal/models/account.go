package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind classifies a bank account.
type AccountKind string

const (
	AccountSavings AccountKind = "savings"
	AccountCurrent AccountKind = "current"
	AccountCredit  AccountKind = "credit"
)

// ValidAccountKind reports whether k is a known account kind.
func ValidAccountKind(k AccountKind) bool {
	switch k {
	case AccountSavings, AccountCurrent, AccountCredit:
		return true
	}
	return false
}

// Account is a bank account whose CurrentBalance is maintained
// incrementally from the settlement effects of its transactions. It is
// never recomputed from scratch on the hot path.
type Account struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	BankName       string           `json:"bank_name"`
	Kind           AccountKind      `json:"kind"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
