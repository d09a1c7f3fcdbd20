package models

import "github.com/google/uuid"

// DueDateOverrideKey identifies a "keep this bucket's amount even though
// its due date has passed" marker for one month, account and bucket.
type DueDateOverrideKey struct {
	MonthID   string    `json:"month_id"`
	AccountID uuid.UUID `json:"account_id"`
	Bucket    string    `json:"bucket"`
}

// RemainingCashKey identifies a remaining-cash override for one month and
// account. The override's value replaces the computed remaining cash; a
// stored nil value means an explicit zero, which is distinct from no
// override being present at all.
type RemainingCashKey struct {
	MonthID   string    `json:"month_id"`
	AccountID uuid.UUID `json:"account_id"`
}
