package services

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// settlementEffect is the transaction's current contribution to its
// account's balance: the signed amount if the status is the variant's
// settled value, zero otherwise.
func settlementEffect(t *models.Transaction) decimal.Decimal {
	if !t.Settled() {
		return decimal.Zero
	}
	return t.SignedAmount()
}

// adjustBalance applies a signed delta to the account. Caller holds the
// lock and has already verified the account exists; a miss here means a
// bookkeeping bug, so it fails loudly rather than silently skewing state.
func (l *Ledger) adjustBalance(accountID uuid.UUID, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	a, ok := l.accounts[accountID]
	if !ok {
		return utils.NotFoundErrorf("account %s", accountID)
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.UpdatedAt = l.now()
	l.persist(accountKey(a.ID), a)
	return nil
}

// RecomputeBalance derives the account's balance from scratch: opening
// balance plus the signed amounts of every settled transaction referencing
// it. This is a test oracle for the incremental maintenance in the
// mutation paths; it is never the production path.
func (l *Ledger) RecomputeBalance(accountID uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[accountID]
	if !ok {
		return decimal.Zero, utils.NotFoundErrorf("account %s", accountID)
	}
	sum := a.OpeningBalance
	for _, t := range l.txns {
		if t.AccountID == accountID {
			sum = sum.Add(settlementEffect(t))
		}
	}
	return sum, nil
}
