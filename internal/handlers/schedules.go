package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// Clock supplies "today" so time-dependent endpoints stay testable.
type Clock func() models.Date

// SchedulesHandler handles recurring templates, EMIs, generation passes
// and conversions
type SchedulesHandler struct {
	ledger    *services.Ledger
	generator *services.Generator
	converter *services.Converter
	clock     Clock
}

// NewSchedulesHandler creates a new schedules handler
func NewSchedulesHandler(ledger *services.Ledger, generator *services.Generator, converter *services.Converter, clock Clock) *SchedulesHandler {
	return &SchedulesHandler{
		ledger:    ledger,
		generator: generator,
		converter: converter,
		clock:     clock,
	}
}

// today prefers an explicit ?today=YYYY-MM-DD over the wall clock.
func (h *SchedulesHandler) today(c fiber.Ctx) (models.Date, error) {
	if q := c.Query("today"); q != "" {
		d, err := models.ParseDate(q)
		if err != nil {
			return models.Date{}, utils.ValidationErrorf("%s", err)
		}
		return d, nil
	}
	return h.clock(), nil
}

// CreateRecurring handles POST /v1/recurring. Creation runs an immediate
// generation pass so a schedule starting today materializes right away.
func (h *SchedulesHandler) CreateRecurring(c fiber.Ctx) error {
	var in services.RecurringInput
	if err := c.Bind().JSON(&in); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}

	tpl, err := h.ledger.CreateRecurring(in)
	if err != nil {
		return err
	}
	if _, err := h.generator.RunPass(h.clock()); err != nil {
		return err
	}
	tpl, err = h.ledger.GetRecurring(tpl.ID)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, tpl)
}

// GetRecurring handles GET /v1/recurring/:id
func (h *SchedulesHandler) GetRecurring(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid template ID")
	}
	tpl, err := h.ledger.GetRecurring(id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, tpl)
}

// ListRecurring handles GET /v1/recurring
func (h *SchedulesHandler) ListRecurring(c fiber.Ctx) error {
	tpls := h.ledger.ListRecurring()
	return utils.ListResponse(c, tpls, len(tpls))
}

// UpdateRecurring handles PUT /v1/recurring/:id
func (h *SchedulesHandler) UpdateRecurring(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid template ID")
	}
	var upd services.RecurringUpdate
	if err := c.Bind().JSON(&upd); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	tpl, err := h.ledger.UpdateRecurring(id, upd)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, tpl)
}

// DeleteRecurring handles DELETE /v1/recurring/:id
func (h *SchedulesHandler) DeleteRecurring(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid template ID")
	}
	if err := h.ledger.DeleteRecurring(id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": id})
}

// setRecurringStatus pauses or resumes a template and, on resume, runs an
// opportunistic generation pass.
func (h *SchedulesHandler) setRecurringStatus(c fiber.Ctx, status models.ScheduleStatus) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid template ID")
	}
	tpl, err := h.ledger.UpdateRecurring(id, services.RecurringUpdate{Status: &status})
	if err != nil {
		return err
	}
	if status == models.ScheduleActive {
		if _, err := h.generator.RunPass(h.clock()); err != nil {
			return err
		}
		tpl, err = h.ledger.GetRecurring(id)
		if err != nil {
			return err
		}
	}
	return utils.SuccessResponse(c, tpl)
}

// PauseRecurring handles POST /v1/recurring/:id/pause
func (h *SchedulesHandler) PauseRecurring(c fiber.Ctx) error {
	return h.setRecurringStatus(c, models.SchedulePaused)
}

// ResumeRecurring handles POST /v1/recurring/:id/resume
func (h *SchedulesHandler) ResumeRecurring(c fiber.Ctx) error {
	return h.setRecurringStatus(c, models.ScheduleActive)
}

// CreateEMI handles POST /v1/emis. Creation runs an immediate generation
// pass, same as recurring templates.
func (h *SchedulesHandler) CreateEMI(c fiber.Ctx) error {
	var in services.EMIInput
	if err := c.Bind().JSON(&in); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}

	emi, err := h.ledger.CreateEMI(in)
	if err != nil {
		return err
	}
	if _, err := h.generator.RunPass(h.clock()); err != nil {
		return err
	}
	emi, err = h.ledger.GetEMI(emi.ID)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, emi)
}

// GetEMI handles GET /v1/emis/:id
func (h *SchedulesHandler) GetEMI(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid EMI ID")
	}
	emi, err := h.ledger.GetEMI(id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, emi)
}

// ListEMIs handles GET /v1/emis
func (h *SchedulesHandler) ListEMIs(c fiber.Ctx) error {
	emis := h.ledger.ListEMIs()
	return utils.ListResponse(c, emis, len(emis))
}

// UpdateEMI handles PUT /v1/emis/:id
func (h *SchedulesHandler) UpdateEMI(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid EMI ID")
	}
	var upd services.EMIUpdate
	if err := c.Bind().JSON(&upd); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	emi, err := h.ledger.UpdateEMI(id, upd)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, emi)
}

// DeleteEMI handles DELETE /v1/emis/:id
func (h *SchedulesHandler) DeleteEMI(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid EMI ID")
	}
	if err := h.ledger.DeleteEMI(id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": id})
}

// setEMIStatus pauses or resumes an EMI.
func (h *SchedulesHandler) setEMIStatus(c fiber.Ctx, status models.ScheduleStatus) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid EMI ID")
	}
	emi, err := h.ledger.UpdateEMI(id, services.EMIUpdate{Status: &status})
	if err != nil {
		return err
	}
	if status == models.ScheduleActive {
		if _, err := h.generator.RunPass(h.clock()); err != nil {
			return err
		}
		emi, err = h.ledger.GetEMI(id)
		if err != nil {
			return err
		}
	}
	return utils.SuccessResponse(c, emi)
}

// PauseEMI handles POST /v1/emis/:id/pause
func (h *SchedulesHandler) PauseEMI(c fiber.Ctx) error {
	return h.setEMIStatus(c, models.SchedulePaused)
}

// ResumeEMI handles POST /v1/emis/:id/resume
func (h *SchedulesHandler) ResumeEMI(c fiber.Ctx) error {
	return h.setEMIStatus(c, models.ScheduleActive)
}

// RunGeneration handles POST /v1/schedules/run
// Query params: today (YYYY-MM-DD, optional), catchup (bool, optional)
func (h *SchedulesHandler) RunGeneration(c fiber.Ctx) error {
	today, err := h.today(c)
	if err != nil {
		return err
	}

	var created int
	if c.Query("catchup") == "true" {
		created, err = h.generator.RunCatchUp(today)
	} else {
		created, err = h.generator.RunPass(today)
	}
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"created": created, "today": today})
}

// ConvertEMI handles POST /v1/emis/:id/convert
func (h *SchedulesHandler) ConvertEMI(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid EMI ID")
	}
	newID, err := h.converter.ConvertEMIToRecurring(id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"recurring_id": newID})
}

// ConvertRecurring handles POST /v1/recurring/:id/convert
func (h *SchedulesHandler) ConvertRecurring(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid template ID")
	}
	newID, err := h.converter.ConvertRecurringToEMI(id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"emi_id": newID})
}
