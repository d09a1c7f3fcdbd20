package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

func reportFor(t *testing.T, l *Ledger, monthID string, today models.Date) *MonthReport {
	t.Helper()
	r, err := l.ProjectMonth(monthID, today, decimal.Zero)
	require.NoError(t, err)
	return r
}

func projectionFor(t *testing.T, r *MonthReport, name string) AccountProjection {
	t.Helper()
	for _, p := range r.Accounts {
		if p.AccountName == name {
			return p
		}
	}
	t.Fatalf("no projection for account %q", name)
	return AccountProjection{}
}

// TestReport_BasicProjection sums inflow, expense allocations by bucket, and
// savings transfers for the month.
func TestReport_BasicProjection(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnIncome, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 1),
		Amount: dec("3000"), Category: "salary", Status: models.StatusReceived,
	})
	require.NoError(t, err)
	_, err = l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 20),
		Amount: dec("800"), Bucket: "rent", Status: models.StatusPending,
	})
	require.NoError(t, err)
	_, err = l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 22),
		Amount: dec("150"), Bucket: "groceries", Status: models.StatusPaid,
	})
	require.NoError(t, err)
	_, err = l.CreateTransaction(TransactionInput{
		Kind: models.TxnSavings, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 25),
		Amount: dec("500"), Destination: "index fund", Status: models.StatusPending,
	})
	require.NoError(t, err)

	// A transaction outside the month is invisible to the report.
	_, err = l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 4, 2),
		Amount: dec("999"), Bucket: "rent", Status: models.StatusPending,
	})
	require.NoError(t, err)

	r := reportFor(t, l, "2024-03", models.NewDate(2024, 3, 15))
	p := projectionFor(t, r, "Main")

	assert.True(t, p.Inflow.Equal(dec("3000")))
	assert.True(t, p.BucketAllocations["rent"].Equal(dec("800")))
	assert.True(t, p.BucketAllocations["groceries"].Equal(dec("150")))
	assert.True(t, p.AllocationTotal.Equal(dec("950")))
	assert.True(t, p.SavingsTransfer.Equal(dec("500")))
	assert.True(t, p.RemainingCash.Equal(dec("2050")), "inflow minus allocations")
	assert.False(t, p.CashOverridden)
	assert.True(t, r.InflowTotal.Equal(dec("3000")))
	assert.Equal(t, []string{"groceries", "rent"}, r.BucketOrder)
	assert.Equal(t, "2024-03-20", r.BucketDueDates["rent"].String())
}

// TestReport_DueDateZeroing drops past-due unsettled expenses from the
// allocation, restores them under an override, and drops them again once
// the override is removed.
func TestReport_DueDateZeroing(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 1, 5),
		Amount: dec("600"), Bucket: "rent", Status: models.StatusPending,
	})
	require.NoError(t, err)

	// On Jan 5 the expense is due today, not past due: it counts.
	r := reportFor(t, l, "2024-01", models.NewDate(2024, 1, 5))
	p := projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["rent"].Equal(dec("600")))

	// By Feb 1 it is past due and still unsettled: zeroed out.
	r = reportFor(t, l, "2024-01", models.NewDate(2024, 2, 1))
	p = projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["rent"].IsZero())
	assert.True(t, p.RemainingCash.IsZero())

	// An override restores the full sum regardless of due dates.
	key := models.DueDateOverrideKey{MonthID: "2024-01", AccountID: a.ID, Bucket: "rent"}
	require.NoError(t, l.AddDueDateOverride(key))
	r = reportFor(t, l, "2024-01", models.NewDate(2024, 2, 1))
	p = projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["rent"].Equal(dec("600")))

	// Removing the override zeroes it again.
	require.NoError(t, l.RemoveDueDateOverride(key))
	r = reportFor(t, l, "2024-01", models.NewDate(2024, 2, 1))
	p = projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["rent"].IsZero())
}

// TestReport_SettledExpenseNotZeroed a paid expense keeps counting no
// matter how far in the past its date is.
func TestReport_SettledExpenseNotZeroed(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 1, 5),
		Amount: dec("600"), Bucket: "rent", Status: models.StatusPaid,
	})
	require.NoError(t, err)

	r := reportFor(t, l, "2024-01", models.NewDate(2024, 6, 1))
	p := projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["rent"].Equal(dec("600")))
}

// TestReport_RemainingCashOverride a present override always wins, and an
// explicit null means zero.
func TestReport_RemainingCashOverride(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnIncome, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 1),
		Amount: dec("3000"), Category: "salary", Status: models.StatusReceived,
	})
	require.NoError(t, err)

	today := models.NewDate(2024, 3, 15)
	key := models.RemainingCashKey{MonthID: "2024-03", AccountID: a.ID}

	require.NoError(t, l.SetRemainingCashOverride(key, decPtr("1234.56")))
	p := projectionFor(t, reportFor(t, l, "2024-03", today), "Main")
	assert.True(t, p.CashOverridden)
	assert.True(t, p.RemainingCash.Equal(dec("1234.56")))

	// Explicit null: overridden to zero, distinct from no override.
	require.NoError(t, l.SetRemainingCashOverride(key, nil))
	p = projectionFor(t, reportFor(t, l, "2024-03", today), "Main")
	assert.True(t, p.CashOverridden)
	assert.True(t, p.RemainingCash.IsZero())

	require.NoError(t, l.ClearRemainingCashOverride(key))
	p = projectionFor(t, reportFor(t, l, "2024-03", today), "Main")
	assert.False(t, p.CashOverridden)
	assert.True(t, p.RemainingCash.Equal(dec("3000")))
}

// TestReport_FixedFactor fixed balance is the factor applied to inflow.
func TestReport_FixedFactor(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnIncome, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 1),
		Amount: dec("2000"), Category: "salary", Status: models.StatusReceived,
	})
	require.NoError(t, err)

	r, err := l.ProjectMonth("2024-03", models.NewDate(2024, 3, 15), dec("0.4"))
	require.NoError(t, err)
	p := projectionFor(t, r, "Main")
	assert.True(t, p.FixedBalance.Equal(dec("800")))
}

// TestReport_UncategorizedBucket expenses without a bucket are grouped
// under "uncategorized".
func TestReport_UncategorizedBucket(t *testing.T) {
	l := newTestLedger(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 10),
		Amount: dec("75"), Status: models.StatusPaid,
	})
	require.NoError(t, err)

	r := reportFor(t, l, "2024-03", models.NewDate(2024, 3, 15))
	p := projectionFor(t, r, "Main")
	assert.True(t, p.BucketAllocations["uncategorized"].Equal(dec("75")))
	assert.Contains(t, r.BucketOrder, "uncategorized")
}

// TestReport_Deterministic identical inputs produce identical reports:
// account order by name then id, buckets alphabetical.
func TestReport_Deterministic(t *testing.T) {
	l := newTestLedger(t)
	b := mustAccount(t, l, "Bravo", "0")
	al := mustAccount(t, l, "Alpha", "0")

	for _, in := range []TransactionInput{
		{Kind: models.TxnExpense, AccountID: b.ID, TxnDate: models.NewDate(2024, 3, 3), Amount: dec("10"), Bucket: "zeta", Status: models.StatusPaid},
		{Kind: models.TxnExpense, AccountID: al.ID, TxnDate: models.NewDate(2024, 3, 4), Amount: dec("20"), Bucket: "alpha", Status: models.StatusPaid},
		{Kind: models.TxnIncome, AccountID: al.ID, TxnDate: models.NewDate(2024, 3, 1), Amount: dec("100"), Category: "salary", Status: models.StatusReceived},
	} {
		_, err := l.CreateTransaction(in)
		require.NoError(t, err)
	}

	today := models.NewDate(2024, 3, 15)
	first := reportFor(t, l, "2024-03", today)
	second := reportFor(t, l, "2024-03", today)

	require.Len(t, first.Accounts, 2)
	assert.Equal(t, "Alpha", first.Accounts[0].AccountName)
	assert.Equal(t, "Bravo", first.Accounts[1].AccountName)
	assert.Equal(t, []string{"alpha", "zeta"}, first.BucketOrder)
	assert.Equal(t, first.BucketOrder, second.BucketOrder)
	assert.Equal(t, len(first.Accounts), len(second.Accounts))
	for i := range first.Accounts {
		assert.Equal(t, first.Accounts[i].AccountID, second.Accounts[i].AccountID)
	}
}

// TestReport_InvalidMonthID rejects malformed month identifiers.
func TestReport_InvalidMonthID(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.ProjectMonth("march-2024", models.NewDate(2024, 3, 15), decimal.Zero)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
