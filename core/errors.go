package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PaymentsErrorBadInput          = "PAYMENTS_BAD_INPUT"
	PaymentsErrorSignatureInvalid  = "PAYMENTS_SIGNATURE_INVALID"
	PaymentsErrorPayloadTooLarge   = "PAYMENTS_PAYLOAD_TOO_LARGE"
	PaymentsErrorProcessingFailed  = "PAYMENTS_PROCESSING_FAILED"
	PaymentsErrorCheckoutFailed    = "PAYMENTS_CHECKOUT_FAILED"
	PaymentsErrorConfigInvalid     = "PAYMENTS_CONFIG_INVALID"
	PaymentsErrorNotFound          = "PAYMENTS_NOT_FOUND"
	PaymentsErrorInternal          = "PAYMENTS_INTERNAL_ERROR"
	PaymentsErrorValidationFailure = "PAYMENTS_VALIDATION_FAILED"
)

func BadInputError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(
		goerrors.New(message, goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(PaymentsErrorBadInput),
		metadata,
	)
}

func SignatureError(source error, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New("webhook signature verification failed", goerrors.CategoryAuth)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryAuth, "webhook signature verification failed")
	}
	return withMetadata(
		err.WithCode(http.StatusBadRequest).WithTextCode(PaymentsErrorSignatureInvalid),
		metadata,
	)
}

func PayloadTooLargeError(limit int) *goerrors.Error {
	return goerrors.New("request body too large", goerrors.CategoryBadInput).
		WithCode(http.StatusRequestEntityTooLarge).
		WithTextCode(PaymentsErrorPayloadTooLarge).
		WithMetadata(map[string]any{"limit_bytes": limit})
}

// CheckoutBodyTooLargeError reports an oversized checkout request as a plain
// client error.
func CheckoutBodyTooLargeError(limit int) *goerrors.Error {
	return BadInputError("Request body too large", map[string]any{"limit_bytes": limit})
}

// ProcessingError marks a reconciliation failure. The unit of work is rolled
// back and the provider is expected to redeliver.
func ProcessingError(source error, message string, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryOperation)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryOperation, message)
	}
	return withMetadata(
		err.WithCode(http.StatusInternalServerError).WithTextCode(PaymentsErrorProcessingFailed),
		metadata,
	)
}

func NotFoundError(source error, message string, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryNotFound)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryNotFound, message)
	}
	return withMetadata(
		err.WithCode(http.StatusNotFound).WithTextCode(PaymentsErrorNotFound),
		metadata,
	)
}

func ConfigError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(PaymentsErrorConfigInvalid)
}

func InternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(PaymentsErrorInternal)
}

// MapError normalizes any error into a go-errors envelope with an HTTP code
// and text code populated.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrWebhookEventNotFound), errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrCustomerNotFound):
		return NotFoundError(err, err.Error(), nil)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return SignatureError(err, nil)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return BadInputError(err.Error(), nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureEnvelope(mapped)
}

// HTTPStatus returns the status code the error should be reported with.
func HTTPStatus(err error) int {
	mapped := MapError(err)
	if mapped == nil {
		return http.StatusOK
	}
	return mapped.Code
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusFor(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func withMetadata(err *goerrors.Error, metadata map[string]any) *goerrors.Error {
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return PaymentsErrorBadInput
	case goerrors.CategoryValidation:
		return PaymentsErrorValidationFailure
	case goerrors.CategoryAuth:
		return PaymentsErrorSignatureInvalid
	case goerrors.CategoryNotFound:
		return PaymentsErrorNotFound
	case goerrors.CategoryOperation:
		return PaymentsErrorProcessingFailed
	case goerrors.CategoryExternal:
		return PaymentsErrorCheckoutFailed
	default:
		return PaymentsErrorInternal
	}
}

func httpStatusFor(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryAuth:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
