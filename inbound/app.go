package inbound

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-payments/checkout"
	"github.com/goliatone/go-payments/core"
)

// WebhookHandler runs the verify, parse and reconcile pipeline on a raw
// delivery. *webhooks.Processor satisfies it.
type WebhookHandler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.ProcessResult, error)
}

type CheckoutCreator interface {
	CreateFromBody(ctx context.Context, body []byte) (checkout.Result, error)
}

type Deps struct {
	Config    core.Config
	Webhooks  WebhookHandler
	Checkout  CheckoutCreator
	AccessLog bool
}

type webhookAck struct {
	Received         bool   `json:"received"`
	Idempotent       bool   `json:"idempotent"`
	ProcessingStatus string `json:"processingStatus"`
	Detail           string `json:"detail"`
	EventID          string `json:"eventId"`
}

type healthBody struct {
	OK            bool   `json:"ok"`
	Service       string `json:"service"`
	StripeMode    string `json:"stripeMode"`
	SignatureMode string `json:"signatureMode"`
}

type handlers struct {
	config   core.Config
	webhooks WebhookHandler
	checkout CheckoutCreator
}

// NewApp builds the fiber application. The app wide body limit is the larger
// of the two endpoint limits; each endpoint enforces its own.
func NewApp(deps Deps) (*fiber.App, error) {
	if deps.Webhooks == nil {
		return nil, core.InternalError("inbound: webhook handler is required")
	}
	if deps.Checkout == nil {
		return nil, core.InternalError("inbound: checkout creator is required")
	}
	cfg := deps.Config
	bodyLimit := cfg.HTTP.MaxWebhookBodyBytes
	if cfg.HTTP.MaxJSONBodyBytes > bodyLimit {
		bodyLimit = cfg.HTTP.MaxJSONBodyBytes
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		BodyLimit:             bodyLimit,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(bodyLimit),
	})

	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(logger.New())
	}

	h := &handlers{config: cfg, webhooks: deps.Webhooks, checkout: deps.Checkout}
	app.Get("/health", h.health)
	app.Post(webhookPath(cfg.HTTP.WebhookPath), h.webhook)
	app.Post(checkoutPath, h.createCheckout)
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(errorBody{Error: "Not Found"})
	})
	return app, nil
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(healthBody{
		OK:            true,
		Service:       h.config.ServiceName,
		StripeMode:    h.config.Checkout.ProviderMode,
		SignatureMode: h.config.Webhook.SignatureMode,
	})
}

func (h *handlers) webhook(c *fiber.Ctx) error {
	body := c.Body()
	if limit := h.config.HTTP.MaxWebhookBodyBytes; limit > 0 && len(body) > limit {
		return writeError(c, core.PayloadTooLargeError(limit), "")
	}

	headers := map[string]string{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	// fasthttp reuses the request buffer once the handler returns
	raw := append([]byte(nil), body...)

	result, err := h.webhooks.Handle(c.UserContext(), core.InboundRequest{
		Headers: headers,
		Body:    raw,
	})
	if err != nil {
		return writeError(c, err, result.EventID)
	}
	return c.Status(fiber.StatusOK).JSON(webhookAck{
		Received:         true,
		Idempotent:       result.Duplicate,
		ProcessingStatus: string(result.Status),
		Detail:           result.Detail,
		EventID:          result.EventID,
	})
}

func (h *handlers) createCheckout(c *fiber.Ctx) error {
	body := c.Body()
	if limit := h.config.HTTP.MaxJSONBodyBytes; limit > 0 && len(body) > limit {
		return writeError(c, core.CheckoutBodyTooLargeError(limit), "")
	}
	result, err := h.checkout.CreateFromBody(c.UserContext(), append([]byte(nil), body...))
	if err != nil {
		return writeError(c, err, "")
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func webhookPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/webhooks/stripe"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
