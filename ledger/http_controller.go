package ledger

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
)

// HTTPController maps the ledger operations onto a JSON API. Routes expect
// identity.RequireSession to have resolved the acting account.
type HTTPController struct {
	service *Service
}

func NewHTTPController(service *Service) *HTTPController {
	return &HTTPController{service: service}
}

// RegisterRoutes mounts the ledger routes behind the given session guard.
func (c *HTTPController) RegisterRoutes(app fiber.Router, requireSession fiber.Handler) {
	grp := app.Group("/finance", requireSession)

	grp.Post("/categories", c.CreateCategory)
	grp.Get("/categories", c.ListCategories)
	grp.Post("/transactions", c.CreateTransaction)
	grp.Get("/transactions", c.ListTransactions)
	grp.Put("/transactions/:id", c.UpdateTransaction)
	grp.Delete("/transactions/:id", c.DeleteTransaction)
	grp.Get("/reports/summary", c.Summary)
	grp.Get("/reports/category-breakdown", c.CategoryBreakdown)
}

func (c *HTTPController) CreateCategory(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	msg := CategoryMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return badBody(ctx)
	}

	record, err := c.service.CreateCategory(ctx.Context(), account.ID, msg)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(record)
}

func (c *HTTPController) ListCategories(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	records, err := c.service.ListCategories(ctx.Context(), account.ID)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(records)
}

func (c *HTTPController) CreateTransaction(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	msg := TransactionMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return badBody(ctx)
	}

	record, err := c.service.CreateTransaction(ctx.Context(), account.ID, msg)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(record)
}

func (c *HTTPController) ListTransactions(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	records, err := c.service.ListTransactions(ctx.Context(), account.ID, filterFromQuery(ctx))
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(records)
}

func (c *HTTPController) UpdateTransaction(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return writeError(ctx, ErrRecordNotFound)
	}

	msg := TransactionMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return badBody(ctx)
	}

	record, err := c.service.UpdateTransaction(ctx.Context(), account.ID, id, msg)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(record)
}

func (c *HTTPController) DeleteTransaction(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return writeError(ctx, ErrRecordNotFound)
	}

	if err := c.service.DeleteTransaction(ctx.Context(), account.ID, id); err != nil {
		return writeError(ctx, err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *HTTPController) Summary(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	summary, err := c.service.Summary(ctx.Context(), account.ID, filterFromQuery(ctx))
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(summary)
}

func (c *HTTPController) CategoryBreakdown(ctx *fiber.Ctx) error {
	account := identity.AccountFromCtx(ctx)
	if account == nil {
		return writeError(ctx, identity.ErrUnauthenticated)
	}

	rows, err := c.service.CategoryBreakdown(ctx.Context(), account.ID, filterFromQuery(ctx))
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(rows)
}

func filterFromQuery(ctx *fiber.Ctx) Filter {
	filter := Filter{Kind: ctx.Query("transaction_type")}

	if v := ctx.Query("start_date"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			filter.Start = &t
		}
	}

	if v := ctx.Query("end_date"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			filter.End = &t
		}
	}

	if v := ctx.Query("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.CategoryID = &id
		}
	}

	return filter
}

func badBody(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{"message": "could not parse request body"},
	})
}

func writeError(ctx *fiber.Ctx, err error) error {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "internal error"},
		})
	}

	status := fiber.StatusInternalServerError
	switch rich.Category {
	case errors.CategoryConflict:
		status = fiber.StatusConflict
	case errors.CategoryNotFound:
		status = fiber.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		status = fiber.StatusBadRequest
	case errors.CategoryAuth:
		status = fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		status = fiber.StatusForbidden
	}

	body := fiber.Map{"message": rich.Message}
	if rich.TextCode != "" {
		body["text_code"] = rich.TextCode
	}

	return ctx.Status(status).JSON(fiber.Map{"error": body})
}
