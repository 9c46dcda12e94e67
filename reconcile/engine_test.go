package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payments/core"
)

type recordingStores struct {
	customers    []core.UpsertCustomerInput
	orders       []core.UpsertOrderInput
	failed       []core.MarkOrderFailedInput
	refunded     []core.MarkOrderRefundedInput
	orderFound   bool
	customerErr  error
	orderErr     error
	customerSeen int
}

func (s *recordingStores) Events() core.AdmissionLog     { return nil }
func (s *recordingStores) Customers() core.CustomerStore { return s }
func (s *recordingStores) Orders() core.OrderStore       { return s }

func (s *recordingStores) UpsertByEmail(_ context.Context, in core.UpsertCustomerInput) (core.Customer, error) {
	if s.customerErr != nil {
		return core.Customer{}, s.customerErr
	}
	s.customers = append(s.customers, in)
	s.customerSeen++
	return core.Customer{ID: "cus_row_1", Email: in.Email}, nil
}

func (s *recordingStores) UpsertByCheckoutSession(_ context.Context, in core.UpsertOrderInput) (core.Order, error) {
	if s.orderErr != nil {
		return core.Order{}, s.orderErr
	}
	s.orders = append(s.orders, in)
	return core.Order{ID: "ord_row_1", StripeCheckoutSessionID: in.StripeCheckoutSessionID}, nil
}

func (s *recordingStores) MarkFailedByPaymentIntent(_ context.Context, in core.MarkOrderFailedInput) (core.Order, bool, error) {
	if s.orderErr != nil {
		return core.Order{}, false, s.orderErr
	}
	s.failed = append(s.failed, in)
	return core.Order{}, s.orderFound, nil
}

func (s *recordingStores) MarkRefunded(_ context.Context, in core.MarkOrderRefundedInput) (core.Order, bool, error) {
	if s.orderErr != nil {
		return core.Order{}, false, s.orderErr
	}
	s.refunded = append(s.refunded, in)
	return core.Order{}, s.orderFound, nil
}

func testEngine() *Engine {
	engine := NewEngine(Defaults{Currency: "usd", ProductSKU: "genx-delay-vst3", ProductVersion: "0.1.0"})
	engine.Now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return engine
}

func eventOf(t *testing.T, eventType string, object string) core.ProviderEvent {
	t.Helper()
	decoded := map[string]any{}
	decoder := json.NewDecoder(bytesReader(object))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	return core.ProviderEvent{
		ID:     "evt_test",
		Type:   eventType,
		Kind:   core.EventKindOf(eventType),
		Object: decoded,
	}
}

func TestApply_CheckoutCompletedUpsertsCustomerAndOrder(t *testing.T) {
	stores := &recordingStores{}
	event := eventOf(t, "checkout.session.completed", `{
		"id": "cs_1",
		"amount_total": 1999,
		"currency": "usd",
		"payment_status": "paid",
		"payment_intent": "pi_1",
		"customer": "cus_stripe_1",
		"customer_details": {"email": "Buyer@Example.com", "name": "Ada"},
		"metadata": {"product_sku": "genx-reverb", "plugin_version": "1.2.0"}
	}`)

	outcome, err := testEngine().Apply(context.Background(), stores, event)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome != core.Processed(core.DetailOrderUpserted) {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	customer := stores.customers[0]
	if customer.Email != "buyer@example.com" || customer.FullName != "Ada" || customer.StripeCustomerID != "cus_stripe_1" {
		t.Fatalf("unexpected customer input: %#v", customer)
	}
	if customer.Metadata["last_checkout_session_id"] != "cs_1" {
		t.Fatalf("expected session id in customer metadata: %#v", customer.Metadata)
	}

	order := stores.orders[0]
	if order.AmountCents != 1999 || order.Currency != "USD" || order.Status != core.OrderStatusPaid {
		t.Fatalf("unexpected order input: %#v", order)
	}
	if order.CustomerID != "cus_row_1" || order.StripePaymentIntentID != "pi_1" {
		t.Fatalf("expected customer and payment intent linkage: %#v", order)
	}
	if order.ProductSKU != "genx-reverb" || order.ProductVersion != "1.2.0" {
		t.Fatalf("expected product fields from metadata: %#v", order)
	}
}

func TestApply_CheckoutCompletedDefaults(t *testing.T) {
	stores := &recordingStores{}
	event := eventOf(t, "checkout.session.completed", `{
		"id": "cs_ABC",
		"amount_total": 19.5,
		"payment_status": "unpaid",
		"payment_intent": {"id": "pi_expanded"}
	}`)

	if _, err := testEngine().Apply(context.Background(), stores, event); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := stores.customers[0].Email; got != "unknown+cs_abc@checkout.invalid" {
		t.Fatalf("expected placeholder email, got %q", got)
	}
	order := stores.orders[0]
	if order.Status != core.OrderStatusPending {
		t.Fatalf("expected pending order, got %q", order.Status)
	}
	if order.AmountCents != 0 || order.Currency != "USD" {
		t.Fatalf("expected zero amount and default currency, got %d %q", order.AmountCents, order.Currency)
	}
	if order.StripePaymentIntentID != "pi_expanded" {
		t.Fatalf("expected expanded payment intent id, got %q", order.StripePaymentIntentID)
	}
	if order.ProductSKU != "genx-delay-vst3" || order.ProductVersion != "0.1.0" {
		t.Fatalf("expected configured product defaults, got %#v", order)
	}
}

func TestApply_CheckoutCompletedWithoutSessionIDIsProcessingError(t *testing.T) {
	stores := &recordingStores{}
	_, err := testEngine().Apply(context.Background(), stores, eventOf(t, "checkout.session.completed", `{"amount_total": 100}`))
	if err == nil {
		t.Fatalf("expected processing error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.PaymentsErrorProcessingFailed {
		t.Fatalf("expected processing text code, got %v", err)
	}
	if len(stores.customers) != 0 || len(stores.orders) != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestApply_PaymentIntentFailed(t *testing.T) {
	stores := &recordingStores{}
	engine := testEngine()

	outcome, err := engine.Apply(context.Background(), stores, eventOf(t, "payment_intent.payment_failed", `{}`))
	if err != nil || outcome != core.Ignored(core.DetailMissingPaymentIntentID) {
		t.Fatalf("expected missing payment intent outcome, got %#v %v", outcome, err)
	}

	failed := eventOf(t, "payment_intent.payment_failed", `{"id":"pi_1","last_payment_error":{"message":"card declined","code":"card_declined"}}`)
	outcome, err = engine.Apply(context.Background(), stores, failed)
	if err != nil || outcome != core.Ignored(core.DetailOrderNotFoundForPaymentIntent) {
		t.Fatalf("expected not found outcome, got %#v %v", outcome, err)
	}

	stores.orderFound = true
	outcome, err = engine.Apply(context.Background(), stores, failed)
	if err != nil || outcome != core.Processed(core.DetailOrderMarkedFailed) {
		t.Fatalf("expected marked failed outcome, got %#v %v", outcome, err)
	}
	last := stores.failed[len(stores.failed)-1]
	if last.StripePaymentIntentID != "pi_1" || last.Metadata["payment_failure_code"] != "card_declined" {
		t.Fatalf("unexpected failure input: %#v", last)
	}
}

func TestApply_ChargeRefunded(t *testing.T) {
	stores := &recordingStores{}
	engine := testEngine()

	outcome, err := engine.Apply(context.Background(), stores, eventOf(t, "charge.refunded", `{"amount_refunded": 1999}`))
	if err != nil || outcome != core.Ignored(core.DetailMissingChargeIdentifiers) {
		t.Fatalf("expected missing identifiers outcome, got %#v %v", outcome, err)
	}

	refund := eventOf(t, "charge.refunded", `{"id":"ch_1","payment_intent":"pi_unknown","amount_refunded":1999}`)
	outcome, err = engine.Apply(context.Background(), stores, refund)
	if err != nil || outcome != core.Ignored(core.DetailOrderNotFoundForRefund) {
		t.Fatalf("expected not found outcome, got %#v %v", outcome, err)
	}

	stores.orderFound = true
	outcome, err = engine.Apply(context.Background(), stores, refund)
	if err != nil || outcome != core.Processed(core.DetailOrderMarkedRefunded) {
		t.Fatalf("expected refunded outcome, got %#v %v", outcome, err)
	}
	last := stores.refunded[len(stores.refunded)-1]
	if last.StripeChargeID != "ch_1" || last.Metadata["amount_refunded_cents"] != "1999" {
		t.Fatalf("unexpected refund input: %#v", last)
	}
}

func TestApply_UnhandledAndStoreErrors(t *testing.T) {
	stores := &recordingStores{}
	outcome, err := testEngine().Apply(context.Background(), stores, eventOf(t, "invoice.paid", `{"id":"in_1"}`))
	if err != nil || outcome != core.Ignored(core.DetailEventTypeNotHandled) {
		t.Fatalf("expected unhandled outcome, got %#v %v", outcome, err)
	}

	stores.orderErr = errors.New("connection reset")
	_, err = testEngine().Apply(context.Background(), stores, eventOf(t, "charge.refunded", `{"id":"ch_1"}`))
	if err == nil || core.MapError(err).TextCode != core.PaymentsErrorProcessingFailed {
		t.Fatalf("expected store error to surface as processing error, got %v", err)
	}
}
