package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
	"github.com/google/uuid"
)

const (
	MinQuantity = 1
	MaxQuantity = 10

	messageQuantity = "quantity must be an integer between 1 and 10"
	messageURLs     = "successUrl and cancelUrl must be valid http/https URLs"
	messageEmail    = "customerEmail must be a valid email address"
)

// Request is a checkout request after defaults have been applied.
type Request struct {
	Quantity          int    `json:"quantity" validate:"min=1,max=10"`
	SuccessURL        string `json:"successUrl" validate:"required,http_url"`
	CancelURL         string `json:"cancelUrl" validate:"required,http_url"`
	CustomerEmail     string `json:"customerEmail,omitempty" validate:"omitempty,email"`
	ClientReferenceID string `json:"clientReferenceId" validate:"required,max=200"`
	ProductSKU        string `json:"productSku" validate:"required,max=120"`
	PluginVersion     string `json:"pluginVersion" validate:"required,max=60"`
}

type wireRequest struct {
	Quantity          json.RawMessage `json:"quantity"`
	SuccessURL        string          `json:"successUrl"`
	CancelURL         string          `json:"cancelUrl"`
	CustomerEmail     string          `json:"customerEmail"`
	ClientReferenceID string          `json:"clientReferenceId"`
	ProductSKU        string          `json:"productSku"`
	PluginVersion     string          `json:"pluginVersion"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeRequest parses a JSON body and fills unset fields from cfg. An empty
// body is treated as an empty object.
func DecodeRequest(body []byte, cfg core.CheckoutConfig) (Request, error) {
	var wire wireRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &wire); err != nil {
			return Request{}, core.BadInputError("Invalid JSON body", nil)
		}
	}

	quantity, err := parseQuantity(wire.Quantity)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Quantity:          quantity,
		SuccessURL:        firstNonBlank(wire.SuccessURL, cfg.SuccessURL),
		CancelURL:         firstNonBlank(wire.CancelURL, cfg.CancelURL),
		CustomerEmail:     strings.TrimSpace(wire.CustomerEmail),
		ClientReferenceID: firstNonBlank(wire.ClientReferenceID, uuid.NewString()),
		ProductSKU:        firstNonBlank(wire.ProductSKU, cfg.ProductSKU),
		PluginVersion:     firstNonBlank(wire.PluginVersion, cfg.ProductVersion),
	}
	return req, req.Validate()
}

func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return core.BadInputError(err.Error(), nil)
	}

	fields := make([]goerrors.FieldError, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		fields = append(fields, goerrors.FieldError{
			Field:   jsonFieldName(fieldErr.Field()),
			Message: fieldMessage(fieldErr),
			Value:   fieldErr.Value(),
		})
	}
	return goerrors.NewValidation(fields[0].Message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.PaymentsErrorValidationFailure)
}

func parseQuantity(raw json.RawMessage) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return MinQuantity, nil
	}
	number, ok := quantityNumber(trimmed)
	if !ok || number != math.Trunc(number) {
		return 0, quantityError(string(trimmed))
	}
	if number < MinQuantity || number > MaxQuantity {
		return 0, quantityError(string(trimmed))
	}
	return int(number), nil
}

// quantityNumber accepts a JSON number or a string holding a decimal number,
// so "2" and 2 are the same quantity.
func quantityNumber(raw []byte) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

func quantityError(value string) error {
	return goerrors.NewValidation(messageQuantity, goerrors.FieldError{
		Field:   "quantity",
		Message: messageQuantity,
		Value:   value,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.PaymentsErrorValidationFailure)
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Field() {
	case "Quantity":
		return messageQuantity
	case "SuccessURL", "CancelURL":
		return messageURLs
	case "CustomerEmail":
		return messageEmail
	default:
		return jsonFieldName(fieldErr.Field()) + " is invalid (" + fieldErr.Tag() + ")"
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "Quantity":
		return "quantity"
	case "SuccessURL":
		return "successUrl"
	case "CancelURL":
		return "cancelUrl"
	case "CustomerEmail":
		return "customerEmail"
	case "ClientReferenceID":
		return "clientReferenceId"
	case "ProductSKU":
		return "productSku"
	case "PluginVersion":
		return "pluginVersion"
	default:
		return field
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
