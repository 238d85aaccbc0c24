package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// ContextKeyAccount is the fiber locals key holding the resolved account.
const ContextKeyAccount = "identity_account"

// HTTPController maps the identity operations onto a JSON API. Wire format
// errors carry a stable text code and a human readable message, nothing
// else leaks out.
type HTTPController struct {
	registrar *Registrar
	auther    *Auther
	logger    Logger
}

func NewHTTPController(registrar *Registrar, auther *Auther) *HTTPController {
	return &HTTPController{
		registrar: registrar,
		auther:    auther,
		logger:    defLogger{},
	}
}

func (c *HTTPController) WithLogger(logger Logger) *HTTPController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterRoutes mounts the auth routes on the given router.
func (c *HTTPController) RegisterRoutes(app fiber.Router) {
	grp := app.Group("/auth")

	grp.Post("/register", c.Register)
	grp.Post("/resend-otp", c.ResendOTP)
	grp.Post("/verify-otp", c.VerifyOTP)
	grp.Post("/set-password", c.SetPassword)
	grp.Post("/password-reset/start", c.PasswordResetStart)
	grp.Post("/password-reset/verify", c.PasswordResetVerify)
	grp.Post("/password-reset/confirm", c.PasswordResetConfirm)
	grp.Post("/login", c.Login)
	grp.Get("/me", c.RequireSession, c.Me)
}

func (c *HTTPController) Register(ctx *fiber.Ctx) error {
	msg := StartRegistrationMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	receipt, err := c.registrar.StartRegistration(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(receipt)
}

func (c *HTTPController) ResendOTP(ctx *fiber.Ctx) error {
	msg := ResendOTPMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	receipt, err := c.registrar.ResendOTP(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(receipt)
}

func (c *HTTPController) VerifyOTP(ctx *fiber.Ctx) error {
	msg := VerifyOTPMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	resp, err := c.registrar.VerifyOTP(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(resp)
}

func (c *HTTPController) SetPassword(ctx *fiber.Ctx) error {
	msg := SetPasswordMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	receipt, err := c.registrar.SetPassword(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(receipt)
}

func (c *HTTPController) PasswordResetStart(ctx *fiber.Ctx) error {
	msg := PasswordResetStartMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	receipt, err := c.registrar.PasswordResetStart(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(receipt)
}

func (c *HTTPController) PasswordResetVerify(ctx *fiber.Ctx) error {
	msg := VerifyOTPMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	resp, err := c.registrar.PasswordResetVerify(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(resp)
}

func (c *HTTPController) PasswordResetConfirm(ctx *fiber.Ctx) error {
	msg := SetPasswordMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return c.badBody(ctx, err)
	}

	receipt, err := c.registrar.PasswordResetConfirm(ctx.Context(), msg)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(receipt)
}

// LoginRequest accepts either an explicit identifier or, for compatibility
// with older clients, a bare email field.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (p LoginRequest) identifier() string {
	if p.Identifier != "" {
		return p.Identifier
	}
	return p.Email
}

func (c *HTTPController) Login(ctx *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := ctx.BodyParser(&payload); err != nil {
		return c.badBody(ctx, err)
	}

	token, err := c.auther.Login(ctx.Context(), payload.identifier(), payload.Password)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(token)
}

// RequireSession resolves the bearer token and stores the account in the
// request locals. Missing or invalid tokens end the request with 401.
func (c *HTTPController) RequireSession(ctx *fiber.Ctx) error {
	raw := bearerToken(ctx.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return c.writeError(ctx, ErrUnauthenticated)
	}

	account, err := c.auther.ResolveSession(ctx.Context(), raw)
	if err != nil {
		return c.writeError(ctx, err)
	}

	ctx.Locals(ContextKeyAccount, account)
	return ctx.Next()
}

func (c *HTTPController) Me(ctx *fiber.Ctx) error {
	account := AccountFromCtx(ctx)
	if account == nil {
		return c.writeError(ctx, ErrUnauthenticated)
	}
	return ctx.JSON(account)
}

// AccountFromCtx returns the account resolved by RequireSession, or nil.
func AccountFromCtx(ctx *fiber.Ctx) *Account {
	account, _ := ctx.Locals(ContextKeyAccount).(*Account)
	return account
}

func (c *HTTPController) badBody(ctx *fiber.Ctx, err error) error {
	c.logger.Debug("failed to parse request body", "error", err)
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{"message": "could not parse request body"},
	})
}

func (c *HTTPController) writeError(ctx *fiber.Ctx, err error) error {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		c.logger.Error("unexpected error", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "internal error"},
		})
	}

	body := fiber.Map{"message": rich.Message}
	if rich.TextCode != "" {
		body["text_code"] = rich.TextCode
	}

	return ctx.Status(statusFromCategory(rich)).JSON(fiber.Map{"error": body})
}

func statusFromCategory(err *errors.Error) int {
	switch err.Category {
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case errors.CategoryOperation:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}
