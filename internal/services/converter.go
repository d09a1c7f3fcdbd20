package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// Converter moves a schedule between its EMI and recurring-template
// representations without losing or duplicating transaction history.
//
// There is no multi-entity write primitive underneath, so each conversion
// is a compensating-action protocol: snapshot the referencing transactions,
// insert the destination, repoint the references, verify nothing still
// points at the source, then delete the source. A failed verification
// repoints everything back and deletes the destination, so callers observe
// an all-or-nothing outcome.
type Converter struct {
	ledger *Ledger
	log    zerolog.Logger

	// afterRepoint runs between the repoint and verify steps. Tests use it
	// to force the verification to fail.
	afterRepoint func()
}

// NewConverter creates a converter over the ledger.
func NewConverter(l *Ledger, log zerolog.Logger) *Converter {
	return &Converter{ledger: l, log: log}
}

// maxCounterSteps bounds date-walking loops when deriving how many
// occurrences a template has already consumed.
const maxCounterSteps = 1200

// ConvertEMIToRecurring replaces an EMI with an equivalent open-ended
// recurring template. The template's NextDueDate is seeded with the EMI's
// next unpaid installment date, and every transaction that referenced the
// EMI is repointed to the new template.
func (c *Converter) ConvertEMIToRecurring(emiID uuid.UUID) (uuid.UUID, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.emis[emiID]
	if !ok {
		return uuid.Nil, utils.NotFoundErrorf("EMI %s", emiID)
	}

	// Snapshot keeps each transaction's pre-conversion UpdatedAt so a
	// rollback restores it byte for byte.
	original := make(map[uuid.UUID]time.Time)
	for _, t := range l.txns {
		if t.EMIID != nil && *t.EMIID == emiID {
			original[t.ID] = t.UpdatedAt
		}
	}

	now := l.now()
	dst := &models.RecurringTemplate{
		ID:            uuid.New(),
		Kind:          src.Kind,
		AccountID:     src.AccountID,
		Amount:        src.Installment,
		Bucket:        src.Bucket,
		Destination:   src.Destination,
		SavingsType:   src.SavingsType,
		Frequency:     src.Frequency,
		StartDate:     src.StartDate,
		NextDueDate:   src.NextDueDate(),
		DeductionDate: copyDate(src.DeductionDate),
		Status:        src.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// Inserted directly, not through CreateRecurring: schedule creation
	// hooks trigger a generation pass, which would materialize an extra
	// transaction as a side effect of the conversion itself.
	l.recurring[dst.ID] = dst
	l.persist(recurringKey(dst.ID), dst)

	for id := range original {
		t := l.txns[id]
		t.EMIID = nil
		rid := dst.ID
		t.RecurringID = &rid
		t.UpdatedAt = now
		l.persist(txnKey(t.ID), t)
	}

	if c.afterRepoint != nil {
		c.afterRepoint()
	}

	// Verify: nothing may still reference the source.
	if c.countEMIRefsLocked(emiID) != 0 {
		c.rollbackToEMI(emiID, dst.ID, original)
		return uuid.Nil, utils.ConversionErrorf("EMI %s still has referencing transactions after repoint", emiID)
	}

	delete(l.emis, emiID)
	l.persistDelete(emiKey(emiID))

	c.cleanupStrayRecurringTxnsLocked(dst.ID, original)

	c.log.Info().
		Str("emi", emiID.String()).
		Str("recurring", dst.ID.String()).
		Int("repointed", len(original)).
		Msg("EMI converted to recurring template")
	return dst.ID, nil
}

// ConvertRecurringToEMI replaces a recurring template with an equivalent
// fixed-installment EMI. The template must have an end date; an EMI's
// installment count is finite by definition. Occurrences already consumed
// are derived from the stored StartDate/NextDueDate pair, not from
// transaction history.
func (c *Converter) ConvertRecurringToEMI(templateID uuid.UUID) (uuid.UUID, error) {
	l := c.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.recurring[templateID]
	if !ok {
		return uuid.Nil, utils.NotFoundErrorf("recurring template %s", templateID)
	}
	if src.Kind == models.TxnIncome {
		return uuid.Nil, utils.ValidationErrorf("income templates cannot be converted to EMIs")
	}
	if src.EndDate == nil {
		return uuid.Nil, utils.ValidationErrorf("template %s has no end date; an EMI needs a finite installment count", templateID)
	}

	completed := stepsBetween(src.StartDate, src.NextDueDate, src.Frequency)
	remaining := occurrencesThrough(src.NextDueDate, *src.EndDate, src.Frequency)
	total := completed + remaining
	if total <= 0 {
		return uuid.Nil, utils.ValidationErrorf("template %s has no occurrences left to finance", templateID)
	}

	original := make(map[uuid.UUID]time.Time)
	for _, t := range l.txns {
		if t.RecurringID != nil && *t.RecurringID == templateID {
			original[t.ID] = t.UpdatedAt
		}
	}

	now := l.now()
	dst := &models.EMI{
		ID:                    uuid.New(),
		Kind:                  src.Kind,
		AccountID:             src.AccountID,
		Principal:             src.Amount.Mul(intDecimal(total)),
		Installment:           src.Amount,
		TotalInstallments:     total,
		CompletedInstallments: completed,
		Bucket:                src.Bucket,
		Destination:           src.Destination,
		SavingsType:           src.SavingsType,
		Frequency:             src.Frequency,
		StartDate:             src.StartDate,
		DeductionDate:         copyDate(src.DeductionDate),
		Status:                src.Status,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	// Direct insert, bypassing the creation hook (see the EMI→recurring
	// direction).
	l.emis[dst.ID] = dst
	l.persist(emiKey(dst.ID), dst)

	for id := range original {
		t := l.txns[id]
		t.RecurringID = nil
		eid := dst.ID
		t.EMIID = &eid
		t.UpdatedAt = now
		l.persist(txnKey(t.ID), t)
	}

	if c.afterRepoint != nil {
		c.afterRepoint()
	}

	if c.countRecurringRefsLocked(templateID) != 0 {
		c.rollbackToRecurring(templateID, dst.ID, original)
		return uuid.Nil, utils.ConversionErrorf("template %s still has referencing transactions after repoint", templateID)
	}

	delete(l.recurring, templateID)
	l.persistDelete(recurringKey(templateID))

	c.cleanupStrayEMITxnsLocked(dst.ID, original)

	c.log.Info().
		Str("recurring", templateID.String()).
		Str("emi", dst.ID.String()).
		Int("repointed", len(original)).
		Msg("recurring template converted to EMI")
	return dst.ID, nil
}

// rollbackToEMI restores the snapshot transactions to the source EMI and
// removes the destination template, leaving state as before the call.
// Each transaction gets its pre-conversion UpdatedAt back.
func (c *Converter) rollbackToEMI(srcID, dstID uuid.UUID, original map[uuid.UUID]time.Time) {
	l := c.ledger
	for id, updatedAt := range original {
		t, ok := l.txns[id]
		if !ok {
			continue
		}
		t.RecurringID = nil
		sid := srcID
		t.EMIID = &sid
		t.UpdatedAt = updatedAt
		l.persist(txnKey(t.ID), t)
	}
	delete(l.recurring, dstID)
	l.persistDelete(recurringKey(dstID))
	c.log.Warn().Str("emi", srcID.String()).Msg("conversion rolled back")
}

// rollbackToRecurring is the mirror of rollbackToEMI.
func (c *Converter) rollbackToRecurring(srcID, dstID uuid.UUID, original map[uuid.UUID]time.Time) {
	l := c.ledger
	for id, updatedAt := range original {
		t, ok := l.txns[id]
		if !ok {
			continue
		}
		t.EMIID = nil
		sid := srcID
		t.RecurringID = &sid
		t.UpdatedAt = updatedAt
		l.persist(txnKey(t.ID), t)
	}
	delete(l.emis, dstID)
	l.persistDelete(emiKey(dstID))
	c.log.Warn().Str("recurring", srcID.String()).Msg("conversion rolled back")
}

// cleanupStrayRecurringTxnsLocked deletes transactions referencing the new
// template that were not part of the converted history, i.e. produced by a
// generation pass racing the conversion.
func (c *Converter) cleanupStrayRecurringTxnsLocked(dstID uuid.UUID, original map[uuid.UUID]time.Time) {
	l := c.ledger
	var stray []uuid.UUID
	for _, t := range l.txns {
		if t.RecurringID != nil && *t.RecurringID == dstID {
			if _, ok := original[t.ID]; !ok {
				stray = append(stray, t.ID)
			}
		}
	}
	for _, id := range stray {
		if err := l.deleteTransactionLocked(id); err != nil {
			c.log.Error().Err(err).Str("txn", id.String()).Msg("failed to delete stray generated transaction")
		}
	}
}

func (c *Converter) cleanupStrayEMITxnsLocked(dstID uuid.UUID, original map[uuid.UUID]time.Time) {
	l := c.ledger
	var stray []uuid.UUID
	for _, t := range l.txns {
		if t.EMIID != nil && *t.EMIID == dstID {
			if _, ok := original[t.ID]; !ok {
				stray = append(stray, t.ID)
			}
		}
	}
	for _, id := range stray {
		if err := l.deleteTransactionLocked(id); err != nil {
			c.log.Error().Err(err).Str("txn", id.String()).Msg("failed to delete stray generated transaction")
		}
	}
}

func (c *Converter) countEMIRefsLocked(id uuid.UUID) int {
	n := 0
	for _, t := range c.ledger.txns {
		if t.EMIID != nil && *t.EMIID == id {
			n++
		}
	}
	return n
}

func (c *Converter) countRecurringRefsLocked(id uuid.UUID) int {
	n := 0
	for _, t := range c.ledger.txns {
		if t.RecurringID != nil && *t.RecurringID == id {
			n++
		}
	}
	return n
}

// intDecimal converts an installment count for principal arithmetic.
func intDecimal(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// stepsBetween counts frequency steps from start (exclusive of the end)
// until reaching next. A template whose NextDueDate has moved n steps past
// its StartDate has consumed n occurrences.
func stepsBetween(start, next models.Date, f models.Frequency) int {
	steps := 0
	d := start
	for d.Before(next.Time) && steps < maxCounterSteps {
		d = f.Step(d)
		steps++
	}
	return steps
}

// occurrencesThrough counts occurrences from first through end, inclusive.
func occurrencesThrough(first, end models.Date, f models.Frequency) int {
	count := 0
	d := first
	for !d.After(end.Time) && count < maxCounterSteps {
		d = f.Step(d)
		count++
	}
	return count
}
