package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// cashOverrideRecord is the persisted shape of one remaining-cash
// override. Value nil is an explicit zero, distinct from the override not
// existing.
type cashOverrideRecord struct {
	Key   models.RemainingCashKey `json:"key"`
	Value *decimal.Decimal        `json:"value"`
}

func (l *Ledger) validateOverrideKey(monthID string, accountID uuid.UUID) error {
	if _, _, err := models.MonthRange(monthID); err != nil {
		return utils.ValidationErrorf("%s", err)
	}
	if _, ok := l.accounts[accountID]; !ok {
		return utils.ValidationErrorf("account %s does not exist", accountID)
	}
	return nil
}

// AddDueDateOverride marks a (month, account, bucket) so its bucket total
// keeps past-due amounts in the monthly projection.
func (l *Ledger) AddDueDateOverride(key models.DueDateOverrideKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validateOverrideKey(key.MonthID, key.AccountID); err != nil {
		return err
	}
	if key.Bucket == "" {
		return utils.ValidationErrorf("bucket is required")
	}
	l.dueOverrides[key] = struct{}{}
	l.persist(dueOverrideKey(key), key)
	return nil
}

// RemoveDueDateOverride deletes the marker; removing an absent override is
// a no-op.
func (l *Ledger) RemoveDueDateOverride(key models.DueDateOverrideKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.dueOverrides, key)
	l.persistDelete(dueOverrideKey(key))
	return nil
}

// ListDueDateOverrides returns the overrides for one month, sorted for
// stable output.
func (l *Ledger) ListDueDateOverrides(monthID string) []models.DueDateOverrideKey {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.DueDateOverrideKey, 0)
	for k := range l.dueOverrides {
		if k.MonthID == monthID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID.String() < out[j].AccountID.String()
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out
}

// SetRemainingCashOverride pins the remaining cash of (month, account) to
// value. A nil value pins it to zero; that is still an override.
func (l *Ledger) SetRemainingCashOverride(key models.RemainingCashKey, value *decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validateOverrideKey(key.MonthID, key.AccountID); err != nil {
		return err
	}
	if value != nil {
		v := *value
		value = &v
	}
	l.cashOverrides[key] = value
	l.persist(cashOverrideKey(key), cashOverrideRecord{Key: key, Value: value})
	return nil
}

// ClearRemainingCashOverride removes the override entirely, restoring the
// computed remaining cash.
func (l *Ledger) ClearRemainingCashOverride(key models.RemainingCashKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.cashOverrides, key)
	l.persistDelete(cashOverrideKey(key))
	return nil
}

// GetRemainingCashOverride reports the override for (month, account) and
// whether one exists.
func (l *Ledger) GetRemainingCashOverride(key models.RemainingCashKey) (*decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.cashOverrides[key]
	if !ok {
		return nil, false
	}
	if v == nil {
		return nil, true
	}
	cp := *v
	return &cp, true
}
