package services

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashwinpatil/khata-api/internal/models"
)

// Generator materializes due transactions from active schedules. A pass is
// idempotent for a given date and generates at most one transaction per
// schedule; callers that need catch-up over several missed periods loop
// the pass until nothing more is due.
type Generator struct {
	ledger *Ledger
	log    zerolog.Logger
}

// NewGenerator creates a generator over the ledger.
func NewGenerator(l *Ledger, log zerolog.Logger) *Generator {
	return &Generator{ledger: l, log: log}
}

// maxCatchUpPasses bounds RunCatchUp against schedules whose dates would
// otherwise loop for years of missed periods in one request.
const maxCatchUpPasses = 120

// RunPass generates at most one transaction per active schedule whose
// effective due date is on or before today, then advances the schedule.
// It returns the number of transactions created.
func (g *Generator) RunPass(today models.Date) (int, error) {
	l := g.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	created := 0

	for _, r := range l.recurring {
		n, err := g.generateRecurringLocked(r, today)
		if err != nil {
			return created, err
		}
		created += n
	}
	for _, e := range l.emis {
		n, err := g.generateEMILocked(e, today)
		if err != nil {
			return created, err
		}
		created += n
	}

	if created > 0 {
		g.log.Info().Int("created", created).Str("today", today.String()).Msg("generation pass complete")
	}
	return created, nil
}

// RunCatchUp loops RunPass until a pass generates nothing, covering
// schedules that missed several periods while the app was not running.
func (g *Generator) RunCatchUp(today models.Date) (int, error) {
	total := 0
	for i := 0; i < maxCatchUpPasses; i++ {
		n, err := g.RunPass(today)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
	return total, nil
}

func (g *Generator) generateRecurringLocked(r *models.RecurringTemplate, today models.Date) (int, error) {
	if r.Status != models.ScheduleActive {
		return 0, nil
	}
	due := r.EffectiveDueDate()
	if due.After(today.Time) {
		return 0, nil
	}

	// Re-running the pass for the same date must not duplicate.
	if g.recurringTxnExistsLocked(r.ID, due) {
		return 0, nil
	}

	rid := r.ID
	_, err := g.ledger.createTransactionLocked(TransactionInput{
		Kind:        r.Kind,
		AccountID:   r.AccountID,
		TxnDate:     due,
		Amount:      r.Amount,
		Category:    r.Category,
		Bucket:      r.Bucket,
		Destination: r.Destination,
		SavingsType: r.SavingsType,
		Status:      r.Kind.InitialStatus(),
		RecurringID: &rid,
	})
	if err != nil {
		return 0, err
	}

	r.NextDueDate = r.Frequency.Step(r.NextDueDate)
	if r.DeductionDate != nil {
		// An overridden schedule keeps advancing on its overridden
		// cadence instead of snapping back to the computed one.
		next := r.Frequency.Step(due)
		r.DeductionDate = &next
	}
	if r.EndDate != nil && r.NextDueDate.After(r.EndDate.Time) {
		r.Status = models.ScheduleCompleted
	}
	r.UpdatedAt = g.ledger.now()
	g.ledger.persist(recurringKey(r.ID), r)
	return 1, nil
}

func (g *Generator) generateEMILocked(e *models.EMI, today models.Date) (int, error) {
	if e.Status != models.ScheduleActive {
		return 0, nil
	}
	due := e.EffectiveDueDate()
	if due.After(today.Time) {
		return 0, nil
	}

	if g.emiTxnExistsLocked(e.ID, due) {
		return 0, nil
	}

	eid := e.ID
	_, err := g.ledger.createTransactionLocked(TransactionInput{
		Kind:        e.Kind,
		AccountID:   e.AccountID,
		TxnDate:     due,
		Amount:      e.Installment,
		Bucket:      e.Bucket,
		Destination: e.Destination,
		SavingsType: e.SavingsType,
		Status:      e.Kind.InitialStatus(),
		EMIID:       &eid,
	})
	if err != nil {
		return 0, err
	}

	e.CompletedInstallments++
	if e.DeductionDate != nil {
		next := e.Frequency.Step(due)
		e.DeductionDate = &next
	}
	if e.CompletedInstallments >= e.TotalInstallments {
		e.Status = models.ScheduleCompleted
	}
	e.UpdatedAt = g.ledger.now()
	g.ledger.persist(emiKey(e.ID), e)
	return 1, nil
}

func (g *Generator) recurringTxnExistsLocked(id uuid.UUID, due models.Date) bool {
	for _, t := range g.ledger.txns {
		if t.RecurringID != nil && *t.RecurringID == id && t.TxnDate.Equal(due.Time) {
			return true
		}
	}
	return false
}

func (g *Generator) emiTxnExistsLocked(id uuid.UUID, due models.Date) bool {
	for _, t := range g.ledger.txns {
		if t.EMIID != nil && *t.EMIID == id && t.TxnDate.Equal(due.Time) {
			return true
		}
	}
	return false
}
