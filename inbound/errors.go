package inbound

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

const checkoutPath = "/checkout"

type errorBody struct {
	Error   string                `json:"error"`
	Code    string                `json:"code,omitempty"`
	Detail  string                `json:"detail,omitempty"`
	EventID string                `json:"eventId,omitempty"`
	Fields  []goerrors.FieldError `json:"fields,omitempty"`
}

// writeError renders err as the JSON error envelope using its mapped status.
func writeError(c *fiber.Ctx, err error, eventID string) error {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.InternalError("An unexpected error occurred")
	}
	body := errorBody{
		Error:   mapped.Message,
		Code:    mapped.TextCode,
		EventID: strings.TrimSpace(eventID),
		Fields:  mapped.AllValidationErrors(),
	}
	if source := errors.Unwrap(mapped); source != nil && source.Error() != mapped.Message {
		body.Detail = source.Error()
	}
	status := mapped.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	return c.Status(status).JSON(body)
}

// errorHandler is the app level fallback for errors returned by handlers
// and for fiber's own transport errors.
func errorHandler(bodyLimit int) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			switch fiberErr.Code {
			case fiber.StatusRequestEntityTooLarge:
				if c.Path() == checkoutPath {
					return writeError(c, core.CheckoutBodyTooLargeError(bodyLimit), "")
				}
				return writeError(c, core.PayloadTooLargeError(bodyLimit), "")
			case fiber.StatusNotFound:
				return c.Status(fiber.StatusNotFound).JSON(errorBody{Error: "Not Found"})
			default:
				return c.Status(fiberErr.Code).JSON(errorBody{Error: fiberErr.Message})
			}
		}
		return writeError(c, err, "")
	}
}
