package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is a schedule cadence.
type Frequency string

const (
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqYearly    Frequency = "yearly"
)

// ValidFrequency reports whether f is a known cadence.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqWeekly, FreqMonthly, FreqQuarterly, FreqYearly:
		return true
	}
	return false
}

// Step advances d by one interval of the frequency.
func (f Frequency) Step(d Date) Date {
	switch f {
	case FreqWeekly:
		return d.AddDays(7)
	case FreqQuarterly:
		return d.AddMonths(3)
	case FreqYearly:
		return d.AddYears(1)
	default:
		return d.AddMonths(1)
	}
}

// ScheduleStatus is the lifecycle of a recurring template or EMI.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	SchedulePaused    ScheduleStatus = "paused"
	ScheduleCompleted ScheduleStatus = "completed"
)

// RecurringTemplate is an open-ended schedule that materializes one
// transaction per frequency interval until an optional EndDate.
// DeductionDate, when set, overrides NextDueDate as the effective due date
// and advances on its own cadence.
type RecurringTemplate struct {
	ID            uuid.UUID       `json:"id"`
	Kind          TxnKind         `json:"kind"`
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category,omitempty"`
	Bucket        string          `json:"bucket,omitempty"`
	Destination   string          `json:"destination,omitempty"`
	SavingsType   string          `json:"savings_type,omitempty"`
	Frequency     Frequency       `json:"frequency"`
	StartDate     Date            `json:"start_date"`
	EndDate       *Date           `json:"end_date,omitempty"`
	NextDueDate   Date            `json:"next_due_date"`
	DeductionDate *Date           `json:"deduction_date,omitempty"`
	Status        ScheduleStatus  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// EffectiveDueDate prefers the manual deduction-date override over the
// computed next occurrence.
func (r *RecurringTemplate) EffectiveDueDate() Date {
	if r.DeductionDate != nil {
		return *r.DeductionDate
	}
	return r.NextDueDate
}

// EMI is a fixed-installment schedule: TotalInstallments transactions of
// Installment each, starting at StartDate on the given frequency. Only the
// expense and savings families may be financed this way.
type EMI struct {
	ID                    uuid.UUID       `json:"id"`
	Kind                  TxnKind         `json:"kind"`
	AccountID             uuid.UUID       `json:"account_id"`
	Principal             decimal.Decimal `json:"principal"`
	Installment           decimal.Decimal `json:"installment"`
	TotalInstallments     int             `json:"total_installments"`
	CompletedInstallments int             `json:"completed_installments"`
	Bucket                string          `json:"bucket,omitempty"`
	Destination           string          `json:"destination,omitempty"`
	SavingsType           string          `json:"savings_type,omitempty"`
	Frequency             Frequency       `json:"frequency"`
	StartDate             Date            `json:"start_date"`
	DeductionDate         *Date           `json:"deduction_date,omitempty"`
	Status                ScheduleStatus  `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NextDueDate is the date of the next unpaid installment: the start date
// stepped once per completed installment.
func (e *EMI) NextDueDate() Date {
	d := e.StartDate
	for i := 0; i < e.CompletedInstallments; i++ {
		d = e.Frequency.Step(d)
	}
	return d
}

// EffectiveDueDate prefers the manual deduction-date override over the
// computed next installment date.
func (e *EMI) EffectiveDueDate() Date {
	if e.DeductionDate != nil {
		return *e.DeductionDate
	}
	return e.NextDueDate()
}
