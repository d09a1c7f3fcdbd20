package services

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinpatil/khata-api/internal/models"
)

func newTestGenerator(t *testing.T) (*Ledger, *Generator) {
	t.Helper()
	l := newTestLedger(t)
	return l, NewGenerator(l, zerolog.Nop())
}

// TestGenerator_RecurringDueToday materializes exactly one pending
// transaction and advances the next due date by one interval.
func TestGenerator_RecurringDueToday(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")
	today := models.NewDate(2024, 3, 15)

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("500"),
		Bucket:    "rent",
		Frequency: models.FreqMonthly,
		StartDate: today,
	})
	require.NoError(t, err)

	created, err := g.RunPass(today)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	txns := l.ListTransactions(TxnFilter{RecurringID: &tpl.ID})
	require.Len(t, txns, 1)
	assert.Equal(t, models.StatusPending, txns[0].Status)
	assert.True(t, txns[0].Amount.Equal(dec("500")))
	assert.Equal(t, today.String(), txns[0].TxnDate.String())

	// Balance untouched: generated transactions start unsettled.
	got, _ := l.GetAccount(a.ID)
	assert.True(t, got.CurrentBalance.Equal(dec("1000")))

	tplGot, err := l.GetRecurring(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NewDate(2024, 4, 15).String(), tplGot.NextDueDate.String())
}

// TestGenerator_Idempotence runs the same pass twice and expects no
// duplicate transactions.
func TestGenerator_Idempotence(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")
	today := models.NewDate(2024, 3, 15)

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnIncome,
		AccountID: a.ID,
		Amount:    dec("2000"),
		Category:  "salary",
		Frequency: models.FreqMonthly,
		StartDate: today,
	})
	require.NoError(t, err)

	first, err := g.RunPass(today)
	require.NoError(t, err)
	second, err := g.RunPass(today)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, l.ListTransactions(TxnFilter{RecurringID: &tpl.ID}), 1)
}

// TestGenerator_AtMostOnePerPass never generates more than one
// transaction per schedule per pass, even after many missed periods.
func TestGenerator_AtMostOnePerPass(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("100"),
		Bucket:    "subscriptions",
		Frequency: models.FreqMonthly,
		StartDate: models.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)

	// Three months have elapsed.
	today := models.NewDate(2024, 3, 15)
	created, err := g.RunPass(today)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, l.ListTransactions(TxnFilter{RecurringID: &tpl.ID}), 1)
}

// TestGenerator_CatchUpLoops loops until every missed period is covered.
func TestGenerator_CatchUpLoops(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("100"),
		Bucket:    "subscriptions",
		Frequency: models.FreqMonthly,
		StartDate: models.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)

	created, err := g.RunCatchUp(models.NewDate(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, created) // Jan 1, Feb 1, Mar 1

	txns := l.ListTransactions(TxnFilter{RecurringID: &tpl.ID})
	require.Len(t, txns, 3)
	assert.Equal(t, "2024-01-01", txns[0].TxnDate.String())
	assert.Equal(t, "2024-02-01", txns[1].TxnDate.String())
	assert.Equal(t, "2024-03-01", txns[2].TxnDate.String())
}

// TestGenerator_FrequencyStepping verifies the interval per cadence.
func TestGenerator_FrequencyStepping(t *testing.T) {
	testCases := []struct {
		name     string
		freq     models.Frequency
		expected string
	}{
		{"weekly advances 7 days", models.FreqWeekly, "2024-03-22"},
		{"monthly advances 1 month", models.FreqMonthly, "2024-04-15"},
		{"quarterly advances 3 months", models.FreqQuarterly, "2024-06-15"},
		{"yearly advances 1 year", models.FreqYearly, "2025-03-15"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, g := newTestGenerator(t)
			a := mustAccount(t, l, "Main", "1000")
			today := models.NewDate(2024, 3, 15)

			tpl, err := l.CreateRecurring(RecurringInput{
				Kind:      models.TxnExpense,
				AccountID: a.ID,
				Amount:    dec("100"),
				Bucket:    "misc",
				Frequency: tc.freq,
				StartDate: today,
			})
			require.NoError(t, err)

			_, err = g.RunPass(today)
			require.NoError(t, err)

			got, err := l.GetRecurring(tpl.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.NextDueDate.String())
		})
	}
}

// TestGenerator_PausedSchedulesSkip generates nothing while paused and
// picks back up on resume.
func TestGenerator_PausedSchedulesSkip(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")
	today := models.NewDate(2024, 3, 15)

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("100"),
		Bucket:    "misc",
		Frequency: models.FreqMonthly,
		StartDate: today,
	})
	require.NoError(t, err)

	paused := models.SchedulePaused
	_, err = l.UpdateRecurring(tpl.ID, RecurringUpdate{Status: &paused})
	require.NoError(t, err)

	created, err := g.RunPass(today)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	active := models.ScheduleActive
	_, err = l.UpdateRecurring(tpl.ID, RecurringUpdate{Status: &active})
	require.NoError(t, err)

	created, err = g.RunPass(today)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

// TestGenerator_EndDateCompletes transitions the template once the
// advanced next due date passes the end date.
func TestGenerator_EndDateCompletes(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")
	today := models.NewDate(2024, 3, 15)
	end := models.NewDate(2024, 3, 31)

	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("100"),
		Bucket:    "misc",
		Frequency: models.FreqMonthly,
		StartDate: today,
		EndDate:   &end,
	})
	require.NoError(t, err)

	_, err = g.RunPass(today)
	require.NoError(t, err)

	got, err := l.GetRecurring(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleCompleted, got.Status)

	// Completed templates generate nothing further.
	created, err := g.RunPass(models.NewDate(2024, 4, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

// TestGenerator_DeductionDateOverride uses the override as the effective
// due date and advances the override on its own cadence.
func TestGenerator_DeductionDateOverride(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")

	deduction := models.NewDate(2024, 3, 5)
	tpl, err := l.CreateRecurring(RecurringInput{
		Kind:          models.TxnExpense,
		AccountID:     a.ID,
		Amount:        dec("100"),
		Bucket:        "emi-like",
		Frequency:     models.FreqMonthly,
		StartDate:     models.NewDate(2024, 3, 1),
		DeductionDate: &deduction,
	})
	require.NoError(t, err)

	created, err := g.RunPass(models.NewDate(2024, 3, 5))
	require.NoError(t, err)
	require.Equal(t, 1, created)

	txns := l.ListTransactions(TxnFilter{RecurringID: &tpl.ID})
	require.Len(t, txns, 1)
	assert.Equal(t, "2024-03-05", txns[0].TxnDate.String(), "transaction lands on the overridden date")

	got, err := l.GetRecurring(tpl.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeductionDate)
	assert.Equal(t, "2024-04-05", got.DeductionDate.String(), "override advances from the date just used")
	assert.Equal(t, "2024-04-01", got.NextDueDate.String(), "computed cadence advances too")
}

// TestGenerator_EMIInstallments counts installments up to completion.
func TestGenerator_EMIInstallments(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "50000")

	emi, err := l.CreateEMI(EMIInput{
		Kind:              models.TxnExpense,
		AccountID:         a.ID,
		Principal:         dec("3000"),
		Installment:       dec("1000"),
		TotalInstallments: 3,
		Bucket:            "loan",
		Frequency:         models.FreqMonthly,
		StartDate:         models.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)

	created, err := g.RunCatchUp(models.NewDate(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	got, err := l.GetEMI(emi.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CompletedInstallments)
	assert.Equal(t, models.ScheduleCompleted, got.Status)

	// Nothing more after completion.
	created, err = g.RunPass(models.NewDate(2024, 4, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	txns := l.ListTransactions(TxnFilter{EMIID: &emi.ID})
	require.Len(t, txns, 3)
	assert.Equal(t, "2024-01-10", txns[0].TxnDate.String())
	assert.Equal(t, "2024-02-10", txns[1].TxnDate.String())
	assert.Equal(t, "2024-03-10", txns[2].TxnDate.String())
}

// TestGenerator_NotYetDue generates nothing before the start date.
func TestGenerator_NotYetDue(t *testing.T) {
	l, g := newTestGenerator(t)
	a := mustAccount(t, l, "Main", "1000")

	_, err := l.CreateRecurring(RecurringInput{
		Kind:      models.TxnExpense,
		AccountID: a.ID,
		Amount:    dec("100"),
		Bucket:    "misc",
		Frequency: models.FreqMonthly,
		StartDate: models.NewDate(2024, 4, 1),
	})
	require.NoError(t, err)

	created, err := g.RunPass(models.NewDate(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, l.ListTransactions(TxnFilter{}))
}
