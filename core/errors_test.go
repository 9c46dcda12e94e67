package core

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_AssignsStableCodes(t *testing.T) {
	mapped := MapError(stderrors.New("webhooks: signature verification failed"))
	if mapped.TextCode != PaymentsErrorSignatureInvalid {
		t.Fatalf("expected signature text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for signature failures, got %d", mapped.Code)
	}

	mapped = MapError(fmt.Errorf("lookup: %w", ErrOrderNotFound))
	if mapped.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not found category, got %q", mapped.Category)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = MapError(stderrors.New("webhooks: event id is required"))
	if mapped.TextCode != PaymentsErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
}

func TestMapError_PreservesRichErrors(t *testing.T) {
	source := ProcessingError(stderrors.New("db down"), "reconcile failed", map[string]any{"event_id": "evt_1"})
	mapped := MapError(fmt.Errorf("outer: %w", source))
	if mapped.TextCode != PaymentsErrorProcessingFailed {
		t.Fatalf("expected processing text code, got %q", mapped.TextCode)
	}
	if HTTPStatus(source) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for processing errors, got %d", HTTPStatus(source))
	}
}

func TestErrorConstructors_StatusCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		code     int
		textCode string
	}{
		{"bad input", BadInputError("missing id", nil), http.StatusBadRequest, PaymentsErrorBadInput},
		{"signature", SignatureError(nil, nil), http.StatusBadRequest, PaymentsErrorSignatureInvalid},
		{"too large", PayloadTooLargeError(10), http.StatusRequestEntityTooLarge, PaymentsErrorPayloadTooLarge},
		{"config", ConfigError("bad key"), http.StatusInternalServerError, PaymentsErrorConfigInvalid},
		{"not found", NotFoundError(nil, "missing", nil), http.StatusNotFound, PaymentsErrorNotFound},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Fatalf("%s: expected code %d, got %d", tc.name, tc.code, tc.err.Code)
		}
		if tc.err.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %q, got %q", tc.name, tc.textCode, tc.err.TextCode)
		}
	}
	if HTTPStatus(nil) != http.StatusOK {
		t.Fatalf("expected nil error to map to 200")
	}
}
