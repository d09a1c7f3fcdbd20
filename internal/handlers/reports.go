package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// ReportsHandler serves the monthly projection
type ReportsHandler struct {
	ledger *services.Ledger
	clock  Clock
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(ledger *services.Ledger, clock Clock) *ReportsHandler {
	return &ReportsHandler{ledger: ledger, clock: clock}
}

// GetMonthReport handles GET /v1/reports/month/:monthId
// Query params: today (YYYY-MM-DD, optional), fixed_factor (decimal,
// optional, defaults to 0)
func (h *ReportsHandler) GetMonthReport(c fiber.Ctx) error {
	monthID := c.Params("monthId")

	today := h.clock()
	if q := c.Query("today"); q != "" {
		d, err := models.ParseDate(q)
		if err != nil {
			return utils.ValidationErrorf("%s", err)
		}
		today = d
	}

	fixedFactor := decimal.Zero
	if q := c.Query("fixed_factor"); q != "" {
		f, err := decimal.NewFromString(q)
		if err != nil {
			return utils.ValidationErrorf("invalid fixed_factor %q", q)
		}
		fixedFactor = f
	}

	report, err := h.ledger.ProjectMonth(monthID, today, fixedFactor)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, report)
}
