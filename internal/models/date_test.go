package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	for _, bad := range []string{"2024-13-01", "02/29/2024", "2024-2-9", ""} {
		_, err := ParseDate(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDateOfDropsTimeComponent(t *testing.T) {
	d := DateOf(time.Date(2024, time.March, 15, 23, 59, 58, 0, time.FixedZone("IST", 5*3600+1800)))
	assert.Equal(t, "2024-03-15", d.String())
}

func TestDateMonthID(t *testing.T) {
	assert.Equal(t, "2024-03", NewDate(2024, time.March, 1).MonthID())
	assert.Equal(t, "2024-12", NewDate(2024, time.December, 31).MonthID())
}

func TestDateJSONRoundTrip(t *testing.T) {
	type payload struct {
		Due  Date  `json:"due"`
		Done *Date `json:"done,omitempty"`
	}

	b, err := json.Marshal(payload{Due: NewDate(2024, time.March, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-05"}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-03-05","done":null}`), &out))
	assert.Equal(t, "2024-03-05", out.Due.String())
	assert.Nil(t, out.Done)

	assert.Error(t, json.Unmarshal([]byte(`{"due":"03/05/2024"}`), &out))
}

func TestFrequencyStep(t *testing.T) {
	base := NewDate(2024, time.January, 31)

	assert.Equal(t, "2024-02-07", FreqWeekly.Step(base).String())
	assert.Equal(t, "2025-01-31", FreqYearly.Step(base).String())

	// Go date arithmetic normalizes short target months forward.
	assert.Equal(t, "2024-03-02", FreqMonthly.Step(base).String())
	assert.Equal(t, "2024-05-01", FreqQuarterly.Step(base).String())
	assert.Equal(t, "2024-04-15", FreqMonthly.Step(NewDate(2024, time.March, 15)).String())
}

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", start.String())
	assert.Equal(t, "2024-02-29", end.String())

	_, _, err = MonthRange("2024-2")
	assert.Error(t, err)
	_, _, err = MonthRange("feb-2024")
	assert.Error(t, err)
}

func TestEMINextDueDate(t *testing.T) {
	e := EMI{
		Frequency:             FreqMonthly,
		StartDate:             NewDate(2024, time.January, 10),
		CompletedInstallments: 2,
	}
	assert.Equal(t, "2024-03-10", e.NextDueDate().String())

	e.CompletedInstallments = 0
	assert.Equal(t, "2024-01-10", e.NextDueDate().String())
}

func TestSettledStatusPerKind(t *testing.T) {
	assert.Equal(t, StatusReceived, TxnIncome.SettledStatus())
	assert.Equal(t, StatusPaid, TxnExpense.SettledStatus())
	assert.Equal(t, StatusCompleted, TxnSavings.SettledStatus())

	completed := Transaction{Kind: TxnSavings, Status: StatusCompleted}
	skipped := Transaction{Kind: TxnSavings, Status: StatusSkipped}
	pending := Transaction{Kind: TxnIncome, Status: StatusPending}
	assert.True(t, completed.Settled())
	assert.False(t, skipped.Settled())
	assert.False(t, pending.Settled())
}
