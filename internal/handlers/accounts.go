package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// AccountsHandler handles account CRUD requests
type AccountsHandler struct {
	ledger *services.Ledger
}

// NewAccountsHandler creates a new accounts handler
func NewAccountsHandler(ledger *services.Ledger) *AccountsHandler {
	return &AccountsHandler{ledger: ledger}
}

// CreateAccount handles POST /v1/accounts
func (h *AccountsHandler) CreateAccount(c fiber.Ctx) error {
	var in services.AccountInput
	if err := c.Bind().JSON(&in); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}

	account, err := h.ledger.CreateAccount(in)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, account)
}

// GetAccount handles GET /v1/accounts/:id
func (h *AccountsHandler) GetAccount(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid account ID")
	}

	account, err := h.ledger.GetAccount(id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, account)
}

// ListAccounts handles GET /v1/accounts
func (h *AccountsHandler) ListAccounts(c fiber.Ctx) error {
	accounts := h.ledger.ListAccounts()
	return utils.ListResponse(c, accounts, len(accounts))
}

// UpdateAccount handles PUT /v1/accounts/:id
func (h *AccountsHandler) UpdateAccount(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid account ID")
	}

	var upd services.AccountUpdate
	if err := c.Bind().JSON(&upd); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}

	account, err := h.ledger.UpdateAccount(id, upd)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, account)
}

// DeleteAccount handles DELETE /v1/accounts/:id
func (h *AccountsHandler) DeleteAccount(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid account ID")
	}

	if err := h.ledger.DeleteAccount(id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": id})
}
