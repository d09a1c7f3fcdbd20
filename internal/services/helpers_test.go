package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ashwinpatil/khata-api/internal/models"
)

// newTestLedger builds an unpersisted ledger with a frozen creation clock.
func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger(nil, zerolog.Nop())
	l.now = func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return l
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func mustAccount(t *testing.T, l *Ledger, name, balance string) *models.Account {
	t.Helper()
	a, err := l.CreateAccount(AccountInput{
		Name:           name,
		BankName:       "Test Bank",
		Kind:           models.AccountSavings,
		OpeningBalance: dec(balance),
	})
	require.NoError(t, err)
	return a
}

// assertBalanceInvariant checks the maintained balance against the
// from-scratch oracle.
func assertBalanceInvariant(t *testing.T, l *Ledger, accountID uuid.UUID) {
	t.Helper()
	a, err := l.GetAccount(accountID)
	require.NoError(t, err)
	recomputed, err := l.RecomputeBalance(accountID)
	require.NoError(t, err)
	require.True(t, a.CurrentBalance.Equal(recomputed),
		"maintained balance %s diverged from recomputed %s", a.CurrentBalance, recomputed)
}
