package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// RecurringInput is the payload for creating a recurring template.
type RecurringInput struct {
	Kind          models.TxnKind   `json:"kind"`
	AccountID     uuid.UUID        `json:"account_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Category      string           `json:"category,omitempty"`
	Bucket        string           `json:"bucket,omitempty"`
	Destination   string           `json:"destination,omitempty"`
	SavingsType   string           `json:"savings_type,omitempty"`
	Frequency     models.Frequency `json:"frequency"`
	StartDate     models.Date      `json:"start_date"`
	EndDate       *models.Date     `json:"end_date,omitempty"`
	DeductionDate *models.Date     `json:"deduction_date,omitempty"`
}

// RecurringUpdate is a partial update. Status transitions are restricted
// to pausing and resuming; completion only happens through generation or
// conversion.
type RecurringUpdate struct {
	Amount        *decimal.Decimal       `json:"amount,omitempty"`
	Category      *string                `json:"category,omitempty"`
	Bucket        *string                `json:"bucket,omitempty"`
	Destination   *string                `json:"destination,omitempty"`
	SavingsType   *string                `json:"savings_type,omitempty"`
	EndDate       *models.Date           `json:"end_date,omitempty"`
	DeductionDate *models.Date           `json:"deduction_date,omitempty"`
	Status        *models.ScheduleStatus `json:"status,omitempty"`
}

// EMIInput is the payload for creating an EMI.
type EMIInput struct {
	Kind              models.TxnKind   `json:"kind"`
	AccountID         uuid.UUID        `json:"account_id"`
	Principal         decimal.Decimal  `json:"principal"`
	Installment       decimal.Decimal  `json:"installment"`
	TotalInstallments int              `json:"total_installments"`
	Bucket            string           `json:"bucket,omitempty"`
	Destination       string           `json:"destination,omitempty"`
	SavingsType       string           `json:"savings_type,omitempty"`
	Frequency         models.Frequency `json:"frequency"`
	StartDate         models.Date      `json:"start_date"`
	DeductionDate     *models.Date     `json:"deduction_date,omitempty"`
}

// EMIUpdate is a partial update for an EMI.
type EMIUpdate struct {
	Installment   *decimal.Decimal       `json:"installment,omitempty"`
	Bucket        *string                `json:"bucket,omitempty"`
	Destination   *string                `json:"destination,omitempty"`
	SavingsType   *string                `json:"savings_type,omitempty"`
	DeductionDate *models.Date           `json:"deduction_date,omitempty"`
	Status        *models.ScheduleStatus `json:"status,omitempty"`
}

// frequencyAllowed enforces the variant restriction on template cadences:
// savings templates move on month-or-longer cadences only.
func frequencyAllowed(kind models.TxnKind, f models.Frequency) bool {
	if !models.ValidFrequency(f) {
		return false
	}
	if kind == models.TxnSavings && f == models.FreqWeekly {
		return false
	}
	return true
}

// CreateRecurring validates and stores a new template with NextDueDate
// initialized to the start date.
func (l *Ledger) CreateRecurring(in RecurringInput) (*models.RecurringTemplate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !models.ValidTxnKind(in.Kind) {
		return nil, utils.ValidationErrorf("unknown transaction kind %q", in.Kind)
	}
	if _, ok := l.accounts[in.AccountID]; !ok {
		return nil, utils.ValidationErrorf("account %s does not exist", in.AccountID)
	}
	if !in.Amount.IsPositive() {
		return nil, utils.ValidationErrorf("amount must be positive, got %s", in.Amount)
	}
	if !frequencyAllowed(in.Kind, in.Frequency) {
		return nil, utils.ValidationErrorf("frequency %q is not allowed for %s templates", in.Frequency, in.Kind)
	}
	if in.StartDate.IsZero() {
		return nil, utils.ValidationErrorf("start date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate.Time) {
		return nil, utils.ValidationErrorf("end date %s is before start date %s", in.EndDate, in.StartDate)
	}

	now := l.now()
	r := &models.RecurringTemplate{
		ID:            uuid.New(),
		Kind:          in.Kind,
		AccountID:     in.AccountID,
		Amount:        in.Amount,
		Category:      in.Category,
		Bucket:        in.Bucket,
		Destination:   in.Destination,
		SavingsType:   in.SavingsType,
		Frequency:     in.Frequency,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		NextDueDate:   in.StartDate,
		DeductionDate: in.DeductionDate,
		Status:        models.ScheduleActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	l.recurring[r.ID] = r
	l.persist(recurringKey(r.ID), r)
	l.log.Info().Str("recurring", r.ID.String()).Str("kind", string(r.Kind)).Msg("recurring template created")
	return cloneRecurring(r), nil
}

// GetRecurring returns a copy of the template.
func (l *Ledger) GetRecurring(id uuid.UUID) (*models.RecurringTemplate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.recurring[id]
	if !ok {
		return nil, utils.NotFoundErrorf("recurring template %s", id)
	}
	return cloneRecurring(r), nil
}

// ListRecurring returns all templates sorted by creation time.
func (l *Ledger) ListRecurring() []*models.RecurringTemplate {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.RecurringTemplate, 0, len(l.recurring))
	for _, r := range l.recurring {
		out = append(out, cloneRecurring(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// UpdateRecurring applies a partial update.
func (l *Ledger) UpdateRecurring(id uuid.UUID, upd RecurringUpdate) (*models.RecurringTemplate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.recurring[id]
	if !ok {
		return nil, utils.NotFoundErrorf("recurring template %s", id)
	}
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return nil, utils.ValidationErrorf("amount must be positive, got %s", upd.Amount)
	}
	if upd.EndDate != nil && upd.EndDate.Before(r.StartDate.Time) {
		return nil, utils.ValidationErrorf("end date %s is before start date %s", upd.EndDate, r.StartDate)
	}
	if upd.Status != nil {
		if err := validateScheduleTransition(r.Status, *upd.Status); err != nil {
			return nil, err
		}
	}

	if upd.Amount != nil {
		r.Amount = *upd.Amount
	}
	if upd.Category != nil {
		r.Category = *upd.Category
	}
	if upd.Bucket != nil {
		r.Bucket = *upd.Bucket
	}
	if upd.Destination != nil {
		r.Destination = *upd.Destination
	}
	if upd.SavingsType != nil {
		r.SavingsType = *upd.SavingsType
	}
	if upd.EndDate != nil {
		r.EndDate = upd.EndDate
	}
	if upd.DeductionDate != nil {
		r.DeductionDate = upd.DeductionDate
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	r.UpdatedAt = l.now()
	l.persist(recurringKey(r.ID), r)
	return cloneRecurring(r), nil
}

// DeleteRecurring removes a template. It fails closed while any
// transaction still references it.
func (l *Ledger) DeleteRecurring(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.recurring[id]; !ok {
		return utils.NotFoundErrorf("recurring template %s", id)
	}
	for _, t := range l.txns {
		if t.RecurringID != nil && *t.RecurringID == id {
			return utils.ReferentialErrorf("recurring template %s has transactions", id)
		}
	}
	delete(l.recurring, id)
	l.persistDelete(recurringKey(id))
	l.log.Info().Str("recurring", id.String()).Msg("recurring template deleted")
	return nil
}

// CreateEMI validates and stores a new EMI.
func (l *Ledger) CreateEMI(in EMIInput) (*models.EMI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in.Kind != models.TxnExpense && in.Kind != models.TxnSavings {
		return nil, utils.ValidationErrorf("EMIs only finance expense or savings, got %q", in.Kind)
	}
	if _, ok := l.accounts[in.AccountID]; !ok {
		return nil, utils.ValidationErrorf("account %s does not exist", in.AccountID)
	}
	if !in.Principal.IsPositive() {
		return nil, utils.ValidationErrorf("principal must be positive, got %s", in.Principal)
	}
	if !in.Installment.IsPositive() {
		return nil, utils.ValidationErrorf("installment must be positive, got %s", in.Installment)
	}
	if in.TotalInstallments <= 0 {
		return nil, utils.ValidationErrorf("total installments must be positive, got %d", in.TotalInstallments)
	}
	if !models.ValidFrequency(in.Frequency) {
		return nil, utils.ValidationErrorf("unknown frequency %q", in.Frequency)
	}
	if in.StartDate.IsZero() {
		return nil, utils.ValidationErrorf("start date is required")
	}

	now := l.now()
	e := &models.EMI{
		ID:                    uuid.New(),
		Kind:                  in.Kind,
		AccountID:             in.AccountID,
		Principal:             in.Principal,
		Installment:           in.Installment,
		TotalInstallments:     in.TotalInstallments,
		CompletedInstallments: 0,
		Bucket:                in.Bucket,
		Destination:           in.Destination,
		SavingsType:           in.SavingsType,
		Frequency:             in.Frequency,
		StartDate:             in.StartDate,
		DeductionDate:         in.DeductionDate,
		Status:                models.ScheduleActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	l.emis[e.ID] = e
	l.persist(emiKey(e.ID), e)
	l.log.Info().Str("emi", e.ID.String()).Int("installments", e.TotalInstallments).Msg("EMI created")
	return cloneEMI(e), nil
}

// GetEMI returns a copy of the EMI.
func (l *Ledger) GetEMI(id uuid.UUID) (*models.EMI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.emis[id]
	if !ok {
		return nil, utils.NotFoundErrorf("EMI %s", id)
	}
	return cloneEMI(e), nil
}

// ListEMIs returns all EMIs sorted by creation time.
func (l *Ledger) ListEMIs() []*models.EMI {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.EMI, 0, len(l.emis))
	for _, e := range l.emis {
		out = append(out, cloneEMI(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// UpdateEMI applies a partial update.
func (l *Ledger) UpdateEMI(id uuid.UUID, upd EMIUpdate) (*models.EMI, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.emis[id]
	if !ok {
		return nil, utils.NotFoundErrorf("EMI %s", id)
	}
	if upd.Installment != nil && !upd.Installment.IsPositive() {
		return nil, utils.ValidationErrorf("installment must be positive, got %s", upd.Installment)
	}
	if upd.Status != nil {
		if err := validateScheduleTransition(e.Status, *upd.Status); err != nil {
			return nil, err
		}
	}

	if upd.Installment != nil {
		e.Installment = *upd.Installment
	}
	if upd.Bucket != nil {
		e.Bucket = *upd.Bucket
	}
	if upd.Destination != nil {
		e.Destination = *upd.Destination
	}
	if upd.SavingsType != nil {
		e.SavingsType = *upd.SavingsType
	}
	if upd.DeductionDate != nil {
		e.DeductionDate = upd.DeductionDate
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	e.UpdatedAt = l.now()
	l.persist(emiKey(e.ID), e)
	return cloneEMI(e), nil
}

// DeleteEMI removes an EMI. It fails closed while any transaction still
// references it.
func (l *Ledger) DeleteEMI(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.emis[id]; !ok {
		return utils.NotFoundErrorf("EMI %s", id)
	}
	for _, t := range l.txns {
		if t.EMIID != nil && *t.EMIID == id {
			return utils.ReferentialErrorf("EMI %s has transactions", id)
		}
	}
	delete(l.emis, id)
	l.persistDelete(emiKey(id))
	l.log.Info().Str("emi", id.String()).Msg("EMI deleted")
	return nil
}

// validateScheduleTransition allows pausing an active schedule and
// resuming a paused one. Completed schedules are terminal.
func validateScheduleTransition(from, to models.ScheduleStatus) error {
	switch {
	case from == to:
		return nil
	case from == models.ScheduleActive && to == models.SchedulePaused:
		return nil
	case from == models.SchedulePaused && to == models.ScheduleActive:
		return nil
	default:
		return utils.ValidationErrorf("cannot transition schedule from %q to %q", from, to)
	}
}
