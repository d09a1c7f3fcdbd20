package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinpatil/khata-api/internal/kv"
	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// TestLedger_PersistenceRoundTrip writes a ledger through the journal,
// drains it, and rehydrates a fresh ledger from the same store.
func TestLedger_PersistenceRoundTrip(t *testing.T) {
	store := kv.NewMemory()
	journal := NewJournal(store, zerolog.Nop())
	l := NewLedger(journal, zerolog.Nop())

	a := mustAccount(t, l, "Main", "1000")

	txn, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 1),
		Amount: dec("200"), Bucket: "rent", Status: models.StatusPaid,
	})
	require.NoError(t, err)

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind: models.TxnExpense, AccountID: a.ID, Amount: dec("100"),
		Bucket: "gym", Frequency: models.FreqMonthly, StartDate: models.NewDate(2024, 4, 1),
	})
	require.NoError(t, err)

	emi, err := l.CreateEMI(EMIInput{
		Kind: models.TxnExpense, AccountID: a.ID, Principal: dec("1200"),
		Installment: dec("100"), TotalInstallments: 12,
		Bucket: "loan", Frequency: models.FreqMonthly, StartDate: models.NewDate(2024, 4, 10),
	})
	require.NoError(t, err)

	dueKey := models.DueDateOverrideKey{MonthID: "2024-03", AccountID: a.ID, Bucket: "rent"}
	require.NoError(t, l.AddDueDateOverride(dueKey))
	cashKey := models.RemainingCashKey{MonthID: "2024-03", AccountID: a.ID}
	require.NoError(t, l.SetRemainingCashOverride(cashKey, nil))

	// Close drains every queued write into the store.
	journal.Close()

	fresh := NewLedger(nil, zerolog.Nop())
	require.NoError(t, fresh.Load(context.Background(), store))

	gotAccount, err := fresh.GetAccount(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", gotAccount.Name)
	assert.True(t, gotAccount.CurrentBalance.Equal(dec("800")), "settled expense already applied before the snapshot")

	gotTxn, err := fresh.GetTransaction(txn.ID)
	require.NoError(t, err)
	assert.True(t, gotTxn.Amount.Equal(dec("200")))
	assert.Equal(t, models.StatusPaid, gotTxn.Status)
	assert.Equal(t, "2024-03-01", gotTxn.TxnDate.String())

	gotTpl, err := fresh.GetRecurring(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", gotTpl.NextDueDate.String())

	gotEMI, err := fresh.GetEMI(emi.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, gotEMI.TotalInstallments)

	assert.Equal(t, []models.DueDateOverrideKey{dueKey}, fresh.ListDueDateOverrides("2024-03"))
	value, ok := fresh.GetRemainingCashOverride(cashKey)
	assert.True(t, ok, "explicit-null override survives the round trip")
	assert.Nil(t, value)
}

// TestLedger_DeleteReachesStore deletions propagate through the journal.
func TestLedger_DeleteReachesStore(t *testing.T) {
	store := kv.NewMemory()
	journal := NewJournal(store, zerolog.Nop())
	l := NewLedger(journal, zerolog.Nop())

	a := mustAccount(t, l, "Main", "1000")
	txn, err := l.CreateTransaction(TransactionInput{
		Kind: models.TxnExpense, AccountID: a.ID, TxnDate: models.NewDate(2024, 3, 1),
		Amount: dec("200"), Bucket: "rent", Status: models.StatusPaid,
	})
	require.NoError(t, err)
	require.NoError(t, l.DeleteTransaction(txn.ID))

	journal.Close()

	fresh := NewLedger(nil, zerolog.Nop())
	require.NoError(t, fresh.Load(context.Background(), store))

	_, err = fresh.GetTransaction(txn.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	gotAccount, err := fresh.GetAccount(a.ID)
	require.NoError(t, err)
	assert.True(t, gotAccount.CurrentBalance.Equal(dec("1000")), "delete reversed the settled effect before the snapshot")
}
