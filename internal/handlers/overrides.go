package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// OverridesHandler handles due-date and remaining-cash override mutators
type OverridesHandler struct {
	ledger *services.Ledger
}

// NewOverridesHandler creates a new overrides handler
func NewOverridesHandler(ledger *services.Ledger) *OverridesHandler {
	return &OverridesHandler{ledger: ledger}
}

// AddDueDateOverride handles POST /v1/overrides/due-date
func (h *OverridesHandler) AddDueDateOverride(c fiber.Ctx) error {
	var key models.DueDateOverrideKey
	if err := c.Bind().JSON(&key); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	if err := h.ledger.AddDueDateOverride(key); err != nil {
		return err
	}
	return utils.CreatedResponse(c, key)
}

// RemoveDueDateOverride handles DELETE /v1/overrides/due-date
func (h *OverridesHandler) RemoveDueDateOverride(c fiber.Ctx) error {
	var key models.DueDateOverrideKey
	if err := c.Bind().JSON(&key); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	if err := h.ledger.RemoveDueDateOverride(key); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"removed": key})
}

// ListDueDateOverrides handles GET /v1/overrides/due-date/:monthId
func (h *OverridesHandler) ListDueDateOverrides(c fiber.Ctx) error {
	keys := h.ledger.ListDueDateOverrides(c.Params("monthId"))
	return utils.ListResponse(c, keys, len(keys))
}

// remainingCashRequest is the payload for setting a remaining-cash
// override. Value null pins the remaining cash to zero, which is different
// from clearing the override.
type remainingCashRequest struct {
	MonthID   string           `json:"month_id"`
	AccountID string           `json:"account_id"`
	Value     *decimal.Decimal `json:"value"`
}

func (r remainingCashRequest) key() (models.RemainingCashKey, error) {
	id, err := uuid.Parse(r.AccountID)
	if err != nil {
		return models.RemainingCashKey{}, utils.ValidationErrorf("invalid account_id")
	}
	return models.RemainingCashKey{MonthID: r.MonthID, AccountID: id}, nil
}

// SetRemainingCashOverride handles PUT /v1/overrides/remaining-cash
func (h *OverridesHandler) SetRemainingCashOverride(c fiber.Ctx) error {
	var req remainingCashRequest
	if err := c.Bind().JSON(&req); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	key, err := req.key()
	if err != nil {
		return err
	}
	if err := h.ledger.SetRemainingCashOverride(key, req.Value); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"key": key, "value": req.Value})
}

// ClearRemainingCashOverride handles DELETE /v1/overrides/remaining-cash
func (h *OverridesHandler) ClearRemainingCashOverride(c fiber.Ctx) error {
	var req remainingCashRequest
	if err := c.Bind().JSON(&req); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	key, err := req.key()
	if err != nil {
		return err
	}
	if err := h.ledger.ClearRemainingCashOverride(key); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"cleared": key})
}
