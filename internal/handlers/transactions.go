package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

// TransactionsHandler handles transaction CRUD for the three families
type TransactionsHandler struct {
	ledger *services.Ledger
}

// NewTransactionsHandler creates a new transactions handler
func NewTransactionsHandler(ledger *services.Ledger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger}
}

// kindFromPath resolves the :kind route segment.
func kindFromPath(c fiber.Ctx) (models.TxnKind, error) {
	kind := models.TxnKind(c.Params("kind"))
	if !models.ValidTxnKind(kind) {
		return "", utils.ValidationErrorf("unknown transaction kind %q", c.Params("kind"))
	}
	return kind, nil
}

// CreateTransaction handles POST /v1/transactions/:kind
func (h *TransactionsHandler) CreateTransaction(c fiber.Ctx) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return err
	}

	var in services.TransactionInput
	if err := c.Bind().JSON(&in); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}
	in.Kind = kind

	txn, err := h.ledger.CreateTransaction(in)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, txn)
}

// GetTransaction handles GET /v1/transactions/:kind/:id
func (h *TransactionsHandler) GetTransaction(c fiber.Ctx) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid transaction ID")
	}

	txn, err := h.ledger.GetTransaction(id)
	if err != nil {
		return err
	}
	if txn.Kind != kind {
		return utils.NotFoundErrorf("%s transaction %s", kind, id)
	}
	return utils.SuccessResponse(c, txn)
}

// ListTransactions handles GET /v1/transactions/:kind
// Query params: account (uuid), month (YYYY-MM)
func (h *TransactionsHandler) ListTransactions(c fiber.Ctx) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return err
	}

	filter := services.TxnFilter{Kind: &kind, MonthID: c.Query("month")}
	if acct := c.Query("account"); acct != "" {
		id, err := uuid.Parse(acct)
		if err != nil {
			return utils.ValidationErrorf("invalid account filter")
		}
		filter.AccountID = &id
	}

	txns := h.ledger.ListTransactions(filter)
	return utils.ListResponse(c, txns, len(txns))
}

// UpdateTransaction handles PUT /v1/transactions/:kind/:id
func (h *TransactionsHandler) UpdateTransaction(c fiber.Ctx) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid transaction ID")
	}

	existing, err := h.ledger.GetTransaction(id)
	if err != nil {
		return err
	}
	if existing.Kind != kind {
		return utils.NotFoundErrorf("%s transaction %s", kind, id)
	}

	var upd services.TransactionUpdate
	if err := c.Bind().JSON(&upd); err != nil {
		return utils.ValidationErrorf("invalid request body: %s", err)
	}

	txn, err := h.ledger.UpdateTransaction(id, upd)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, txn)
}

// DeleteTransaction handles DELETE /v1/transactions/:kind/:id
func (h *TransactionsHandler) DeleteTransaction(c fiber.Ctx) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ValidationErrorf("invalid transaction ID")
	}

	existing, err := h.ledger.GetTransaction(id)
	if err != nil {
		return err
	}
	if existing.Kind != kind {
		return utils.NotFoundErrorf("%s transaction %s", kind, id)
	}

	if err := h.ledger.DeleteTransaction(id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": id})
}
