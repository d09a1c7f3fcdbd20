package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// ProjectionInput is everything the monthly projection reads. ProjectMonth
// is a pure function of this value: identical inputs always produce
// identical output, and nothing in the input is mutated.
type ProjectionInput struct {
	MonthID       string
	Today         models.Date
	FixedFactor   decimal.Decimal
	Accounts      []*models.Account
	Transactions  []*models.Transaction
	DueOverrides  map[models.DueDateOverrideKey]struct{}
	CashOverrides map[models.RemainingCashKey]*decimal.Decimal
}

// AccountProjection is one account's slice of the monthly report.
type AccountProjection struct {
	AccountID         uuid.UUID                  `json:"account_id"`
	AccountName       string                     `json:"account_name"`
	Inflow            decimal.Decimal            `json:"inflow"`
	BucketAllocations map[string]decimal.Decimal `json:"bucket_allocations"`
	AllocationTotal   decimal.Decimal            `json:"allocation_total"`
	SavingsTransfer   decimal.Decimal            `json:"savings_transfer"`
	FixedBalance      decimal.Decimal            `json:"fixed_balance"`
	RemainingCash     decimal.Decimal            `json:"remaining_cash"`
	CashOverridden    bool                       `json:"cash_overridden"`
}

// MonthReport is the read-only monthly projection.
type MonthReport struct {
	MonthID        string                 `json:"month_id"`
	FixedFactor    decimal.Decimal        `json:"fixed_factor"`
	InflowTotal    decimal.Decimal        `json:"inflow_total"`
	BucketOrder    []string               `json:"bucket_order"`
	BucketDueDates map[string]models.Date `json:"bucket_due_dates"`
	Accounts       []AccountProjection    `json:"accounts"`
}

// ProjectMonth builds the monthly report.
//
// Expense amounts per (account, bucket) are summed with due-date zeroing:
// an unsettled expense whose date is strictly before today contributes
// nothing, unless a due-date override exists for that (month, account,
// bucket), in which case the full sum is used regardless.
//
// Remaining cash per account is inflow − allocations unless a
// remaining-cash override is present; a present override always wins, and
// an explicit null override means zero.
func ProjectMonth(in ProjectionInput) (*MonthReport, error) {
	if _, _, err := models.MonthRange(in.MonthID); err != nil {
		return nil, utils.ValidationErrorf("%s", err)
	}

	type group struct {
		sum     decimal.Decimal
		fullSum decimal.Decimal
	}
	buckets := make(map[string]models.Date) // bucket → earliest due date
	groups := make(map[uuid.UUID]map[string]*group)

	inflow := make(map[uuid.UUID]decimal.Decimal)
	savings := make(map[uuid.UUID]decimal.Decimal)

	for _, t := range in.Transactions {
		if t.TxnDate.MonthID() != in.MonthID {
			continue
		}
		switch t.Kind {
		case models.TxnIncome:
			inflow[t.AccountID] = inflow[t.AccountID].Add(t.Amount)

		case models.TxnSavings:
			savings[t.AccountID] = savings[t.AccountID].Add(t.Amount)

		case models.TxnExpense:
			bucket := t.Bucket
			if bucket == "" {
				bucket = "uncategorized"
			}
			if groups[t.AccountID] == nil {
				groups[t.AccountID] = make(map[string]*group)
			}
			g := groups[t.AccountID][bucket]
			if g == nil {
				g = &group{}
				groups[t.AccountID][bucket] = g
			}

			g.fullSum = g.fullSum.Add(t.Amount)
			pastDue := t.TxnDate.Before(in.Today.Time) && !t.Settled()
			if !pastDue {
				g.sum = g.sum.Add(t.Amount)
			}

			if cur, ok := buckets[bucket]; !ok || t.TxnDate.Before(cur.Time) {
				buckets[bucket] = t.TxnDate
			}
		}
	}

	report := &MonthReport{
		MonthID:        in.MonthID,
		FixedFactor:    in.FixedFactor,
		BucketDueDates: buckets,
	}

	order := make([]string, 0, len(buckets))
	for b := range buckets {
		order = append(order, b)
	}
	sort.Strings(order)
	report.BucketOrder = order

	accounts := make([]*models.Account, len(in.Accounts))
	copy(accounts, in.Accounts)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Name != accounts[j].Name {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].ID.String() < accounts[j].ID.String()
	})

	total := decimal.Zero
	for _, a := range accounts {
		proj := AccountProjection{
			AccountID:         a.ID,
			AccountName:       a.Name,
			Inflow:            inflow[a.ID],
			BucketAllocations: make(map[string]decimal.Decimal),
			SavingsTransfer:   savings[a.ID],
		}

		for bucket, g := range groups[a.ID] {
			amount := g.sum
			key := models.DueDateOverrideKey{MonthID: in.MonthID, AccountID: a.ID, Bucket: bucket}
			if _, overridden := in.DueOverrides[key]; overridden {
				amount = g.fullSum
			}
			proj.BucketAllocations[bucket] = amount
			proj.AllocationTotal = proj.AllocationTotal.Add(amount)
		}

		proj.FixedBalance = proj.Inflow.Mul(in.FixedFactor)

		proj.RemainingCash = proj.Inflow.Sub(proj.AllocationTotal)
		cashKey := models.RemainingCashKey{MonthID: in.MonthID, AccountID: a.ID}
		if value, ok := in.CashOverrides[cashKey]; ok {
			proj.CashOverridden = true
			if value == nil {
				proj.RemainingCash = decimal.Zero
			} else {
				proj.RemainingCash = *value
			}
		}

		total = total.Add(proj.Inflow)
		report.Accounts = append(report.Accounts, proj)
	}
	report.InflowTotal = total

	return report, nil
}

// ProjectMonth assembles the projection input under the ledger lock and
// delegates to the pure function. The report is built fresh on every call;
// there is no cache to diverge from.
func (l *Ledger) ProjectMonth(monthID string, today models.Date, fixedFactor decimal.Decimal) (*MonthReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := ProjectionInput{
		MonthID:       monthID,
		Today:         today,
		FixedFactor:   fixedFactor,
		Accounts:      make([]*models.Account, 0, len(l.accounts)),
		Transactions:  make([]*models.Transaction, 0, len(l.txns)),
		DueOverrides:  l.dueOverrides,
		CashOverrides: l.cashOverrides,
	}
	for _, a := range l.accounts {
		in.Accounts = append(in.Accounts, a)
	}
	for _, t := range l.txns {
		in.Transactions = append(in.Transactions, t)
	}
	return ProjectMonth(in)
}
