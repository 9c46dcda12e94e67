package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	DefaultKeyedHashHeader   = "X-Webhook-Signature"
	DefaultTimestampedHeader = "Stripe-Signature"
)

var (
	ErrSignatureSecretMissing = errors.New("webhooks: signature secret is required")
	ErrSignatureHeaderMissing = errors.New("webhooks: signature header is required")
	ErrSignatureMalformed     = errors.New("webhooks: signature header is malformed")
	ErrSignatureMismatch      = errors.New("webhooks: signature verification failed")
	ErrSignatureExpired       = errors.New("webhooks: signature timestamp outside tolerance")
)

// Verifier checks that a raw body was signed by the trusted provider.
type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// NewVerifier selects the verification strategy from webhook configuration.
func NewVerifier(cfg core.WebhookConfig) (Verifier, error) {
	header := strings.TrimSpace(cfg.Header)
	switch strings.ToLower(strings.TrimSpace(cfg.SignatureMode)) {
	case core.SignatureModeKeyedHash:
		if header == "" {
			header = DefaultKeyedHashHeader
		}
		return KeyedHashVerifier{Header: header, Secret: cfg.Secret}, nil
	case core.SignatureModeTimestamped:
		if header == "" {
			header = DefaultTimestampedHeader
		}
		return TimestampedVerifier{Header: header, Secret: cfg.Secret, Tolerance: cfg.Tolerance}, nil
	default:
		return nil, fmt.Errorf("webhooks: unsupported signature mode %q", cfg.SignatureMode)
	}
}

// KeyedHashVerifier expects a single header carrying hex(HMAC-SHA256(secret, body)).
type KeyedHashVerifier struct {
	Header string
	Secret string
}

func (v KeyedHashVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return ErrSignatureSecretMissing
	}
	signature := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if signature == "" {
		return ErrSignatureHeaderMissing
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMalformed, err)
	}
	if !signatureEqual(decoded, computeSignature(secret, req.Body)) {
		return ErrSignatureMismatch
	}
	return nil
}

// TimestampedVerifier expects `t=<unix>,v1=<hex>[,v1=<hex>...]` where each v1 is
// hex(HMAC-SHA256(secret, t + "." + body)). Any matching v1 is accepted.
type TimestampedVerifier struct {
	Header    string
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v TimestampedVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return ErrSignatureSecretMissing
	}
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return ErrSignatureHeaderMissing
	}
	timestamp, signatures, err := parseTimestampedHeader(header)
	if err != nil {
		return err
	}

	if v.Tolerance > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		signedAt := time.Unix(timestamp, 0)
		current := now()
		if signedAt.Before(current.Add(-v.Tolerance)) || signedAt.After(current.Add(v.Tolerance)) {
			return ErrSignatureExpired
		}
	}

	message := make([]byte, 0, len(req.Body)+24)
	message = strconv.AppendInt(message, timestamp, 10)
	message = append(message, '.')
	message = append(message, req.Body...)
	expected := computeSignature(secret, message)

	matched := false
	for _, signature := range signatures {
		if signatureEqual(signature, expected) {
			matched = true
		}
	}
	if !matched {
		return ErrSignatureMismatch
	}
	return nil
}

func parseTimestampedHeader(header string) (int64, [][]byte, error) {
	var (
		timestamp    int64
		hasTimestamp bool
		signatures   [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrSignatureMalformed
		}
		switch strings.TrimSpace(key) {
		case "t":
			parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureMalformed)
			}
			timestamp = parsed
			hasTimestamp = true
		case "v1":
			decoded, err := hex.DecodeString(strings.TrimSpace(value))
			if err != nil {
				// Undecodable entries cannot match; other entries may still.
				continue
			}
			signatures = append(signatures, decoded)
		}
	}
	if !hasTimestamp {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrSignatureMalformed)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: missing v1 signature", ErrSignatureMalformed)
	}
	return timestamp, signatures, nil
}

func computeSignature(secret string, message []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

// signatureEqual rejects length mismatches before the constant-time compare.
func signatureEqual(got, expected []byte) bool {
	if len(got) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// SignKeyedHash returns the header value a keyed hash sender would produce.
func SignKeyedHash(secret string, body []byte) string {
	return hex.EncodeToString(computeSignature(secret, body))
}

func headerValue(headers map[string]string, name string) string {
	if len(headers) == 0 {
		return ""
	}
	name = strings.TrimSpace(name)
	if value, ok := headers[name]; ok {
		return value
	}
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return value
		}
	}
	return ""
}
