package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-payments/core"
	paymentmigrations "github.com/goliatone/go-payments/migrations"
	"github.com/goliatone/go-payments/reconcile"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/webhooks"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const testSecret = "whsec_integration"

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-payments-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"payment_webhook_events", "customers", "orders"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestWebhookEventStore_AdmitAndMarkOutcome(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	events := factory.WebhookEventStore()

	input := core.AdmitInput{EventID: "evt_1", EventType: "charge.refunded", Payload: []byte(`{"id":"evt_1"}`)}
	inserted, err := events.Admit(ctx, input)
	if err != nil || !inserted {
		t.Fatalf("expected first admission to insert, got inserted=%v err=%v", inserted, err)
	}
	inserted, err = events.Admit(ctx, input)
	if err != nil || inserted {
		t.Fatalf("expected second admission to report existing, got inserted=%v err=%v", inserted, err)
	}

	if err := events.MarkOutcome(ctx, "evt_1", core.ProcessingStatusProcessed, ""); err != nil {
		t.Fatalf("mark outcome: %v", err)
	}
	if err := events.MarkOutcome(ctx, "evt_1", core.ProcessingStatusFailed, "late failure"); err != nil {
		t.Fatalf("second mark outcome: %v", err)
	}
	stored, err := events.GetWebhookEvent(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get webhook event: %v", err)
	}
	if stored.ProcessingStatus != core.ProcessingStatusProcessed || stored.ProcessingError != "" {
		t.Fatalf("expected first outcome to stick, got %#v", stored)
	}
	if stored.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}
	if string(stored.Payload) != `{"id":"evt_1"}` {
		t.Fatalf("expected raw payload to be stored, got %s", stored.Payload)
	}

	if err := events.MarkOutcome(ctx, "evt_1", core.ProcessingStatusReceived, ""); err == nil {
		t.Fatalf("expected non-terminal outcome to be rejected")
	}

	_, err = events.GetWebhookEvent(ctx, "evt_missing")
	if !errors.Is(err, core.ErrWebhookEventNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessor_ConcurrentDeliveryAdmitsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, _ := newPipeline(t, client)

	body := checkoutEvent("evt_concurrent", "cs_concurrent", "paid", "buyer@example.com", "Ada", nil)
	const deliveries = 6
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
		processed  int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := processor.Handle(ctx, signed(body))
			if err != nil {
				t.Errorf("delivery failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Duplicate {
				duplicates++
			} else if result.Status == core.ProcessingStatusProcessed {
				processed++
			}
		}()
	}
	wg.Wait()

	if processed != 1 || duplicates != deliveries-1 {
		t.Fatalf("expected one processed and %d duplicates, got %d and %d", deliveries-1, processed, duplicates)
	}
	if count := countRows(t, client, "payment_webhook_events"); count != 1 {
		t.Fatalf("expected exactly one admission row, got %d", count)
	}
	if count := countRows(t, client, "orders"); count != 1 {
		t.Fatalf("expected exactly one order row, got %d", count)
	}
}

func TestProcessor_CheckoutCompletedReconcilesOrderAndCustomer(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, factory := newPipeline(t, client)

	body := checkoutEvent("evt_paid", "cs_1", "paid", "Buyer@Example.com", "Ada", map[string]string{"campaign": "launch"})
	result, err := processor.Handle(ctx, signed(body))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Status != core.ProcessingStatusProcessed || result.Detail != core.DetailOrderUpserted {
		t.Fatalf("unexpected result: %#v", result)
	}

	order, err := factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.AmountCents != 1999 || order.Currency != "USD" || order.Status != core.OrderStatusPaid {
		t.Fatalf("unexpected order: %#v", order)
	}
	if order.FulfilledAt == nil {
		t.Fatalf("expected paid order to be fulfilled")
	}
	if order.StripePaymentIntentID != "pi_cs_1" {
		t.Fatalf("expected payment intent to be recorded, got %q", order.StripePaymentIntentID)
	}

	customer, err := factory.CustomerStore().GetCustomer(ctx, order.CustomerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Email != "buyer@example.com" || customer.FullName != "Ada" {
		t.Fatalf("unexpected customer: %#v", customer)
	}

	second := checkoutEvent("evt_paid_2", "cs_2", "paid", "buyer@example.com", "Ada", nil)
	if _, err := processor.Handle(ctx, signed(second)); err != nil {
		t.Fatalf("handle second checkout: %v", err)
	}
	history, err := factory.OrderStore().ListOrdersByCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("list customer orders: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected both checkouts under one customer, got %d", len(history))
	}
	if other, err := factory.OrderStore().ListOrdersByCustomer(ctx, "missing"); err != nil || len(other) != 0 {
		t.Fatalf("expected no orders for unknown customer, got %v %v", other, err)
	}

	again, err := processor.Handle(ctx, signed(body))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !again.Duplicate || again.Detail != core.DetailAlreadyProcessed {
		t.Fatalf("expected idempotent redelivery, got %#v", again)
	}
	unchanged, err := factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("get order after redelivery: %v", err)
	}
	if !unchanged.UpdatedAt.Equal(order.UpdatedAt) {
		t.Fatalf("expected redelivery to leave the order untouched")
	}
}

func TestProcessor_PendingSessionStaysPending(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, factory := newPipeline(t, client)

	if _, err := processor.Handle(ctx, signed(checkoutEvent("evt_unpaid", "cs_2", "unpaid", "", "", nil))); err != nil {
		t.Fatalf("handle: %v", err)
	}
	order, err := factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_2")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != core.OrderStatusPending || order.FulfilledAt != nil {
		t.Fatalf("expected pending unfulfilled order, got %#v", order)
	}
	customer, err := factory.CustomerStore().GetCustomer(ctx, order.CustomerID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Email != reconcile.PlaceholderEmail("cs_2") {
		t.Fatalf("expected placeholder email, got %q", customer.Email)
	}
}

func TestProcessor_CustomerNameIsLastNonEmptyAndMetadataMerges(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, factory := newPipeline(t, client)

	first := checkoutEvent("evt_a", "cs_same", "unpaid", "buyer@example.com", "Ada", map[string]string{"first_key": "1"})
	second := checkoutEvent("evt_b", "cs_same", "paid", "buyer@example.com", "Ada Lovelace", map[string]string{"second_key": "2"})
	third := checkoutEvent("evt_c", "cs_same", "paid", "buyer@example.com", "", nil)
	for _, body := range []string{first, second, third} {
		if _, err := processor.Handle(ctx, signed(body)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	customer, err := factory.CustomerStore().GetCustomerByEmail(ctx, "buyer@example.com")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.FullName != "Ada Lovelace" {
		t.Fatalf("expected last non-empty name, got %q", customer.FullName)
	}
	if customer.Metadata["first_key"] != "1" || customer.Metadata["second_key"] != "2" {
		t.Fatalf("expected merged customer metadata, got %#v", customer.Metadata)
	}

	order, err := factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_same")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != core.OrderStatusPaid {
		t.Fatalf("expected latest status, got %q", order.Status)
	}
	if order.Metadata["first_key"] != "1" || order.Metadata["second_key"] != "2" {
		t.Fatalf("expected merged order metadata, got %#v", order.Metadata)
	}
	if count := countRows(t, client, "orders"); count != 1 {
		t.Fatalf("expected one order for the session, got %d", count)
	}
}

func TestProcessor_FailureThenRefundLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, factory := newPipeline(t, client)

	if _, err := processor.Handle(ctx, signed(checkoutEvent("evt_paid", "cs_1", "paid", "buyer@example.com", "Ada", nil))); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	failed := `{"id":"evt_fail","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_cs_1","last_payment_error":{"code":"card_declined"}}}}`
	result, err := processor.Handle(ctx, signed(failed))
	if err != nil || result.Detail != core.DetailOrderMarkedFailed {
		t.Fatalf("expected order marked failed, got %#v %v", result, err)
	}

	refund := `{"id":"evt_refund","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":"pi_cs_1","amount_refunded":1999}}}`
	result, err = processor.Handle(ctx, signed(refund))
	if err != nil || result.Detail != core.DetailOrderMarkedRefunded {
		t.Fatalf("expected order marked refunded, got %#v %v", result, err)
	}

	order, err := factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != core.OrderStatusRefunded || order.StripeChargeID != "ch_1" || order.RefundedAt == nil {
		t.Fatalf("unexpected refunded order: %#v", order)
	}
	if order.Metadata["payment_failure_code"] != "card_declined" {
		t.Fatalf("expected failure metadata to survive, got %#v", order.Metadata)
	}
	refundedAt := *order.RefundedAt

	secondRefund := `{"id":"evt_refund_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
	if _, err := processor.Handle(ctx, signed(secondRefund)); err != nil {
		t.Fatalf("second refund: %v", err)
	}
	order, err = factory.OrderStore().GetOrderByCheckoutSession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.RefundedAt == nil || !order.RefundedAt.Equal(refundedAt) {
		t.Fatalf("expected refunded_at to be filled once")
	}
}

func TestProcessor_UnknownRefundIsIgnoredWithoutMutation(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, _ := newPipeline(t, client)

	refund := `{"id":"evt_refund","type":"charge.refunded","data":{"object":{"payment_intent":"pi_unknown"}}}`
	result, err := processor.Handle(ctx, signed(refund))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Status != core.ProcessingStatusIgnored || result.Detail != core.DetailOrderNotFoundForRefund {
		t.Fatalf("unexpected result: %#v", result)
	}
	if countRows(t, client, "orders") != 0 || countRows(t, client, "customers") != 0 {
		t.Fatalf("expected no order or customer rows")
	}
	if countRows(t, client, "payment_webhook_events") != 1 {
		t.Fatalf("expected the ignored event to be logged")
	}
}

func TestProcessor_InvalidSignatureWritesNothing(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, _ := newPipeline(t, client)

	body := checkoutEvent("evt_forged", "cs_forged", "paid", "x@example.com", "", nil)
	req := core.InboundRequest{
		Headers: map[string]string{webhooks.DefaultKeyedHashHeader: webhooks.SignKeyedHash("forged", []byte(body))},
		Body:    []byte(body),
	}
	_, err := processor.Handle(ctx, req)
	if status := core.HTTPStatus(err); status < 400 || status >= 500 {
		t.Fatalf("expected 4xx, got %d (%v)", status, err)
	}
	for _, table := range []string{"payment_webhook_events", "customers", "orders"} {
		if count := countRows(t, client, table); count != 0 {
			t.Fatalf("expected no rows in %s, got %d", table, count)
		}
	}
}

func TestProcessor_RolledBackFailureIsReprocessedFresh(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	engine := reconcile.NewEngine(reconcile.Defaults{Currency: "USD", ProductSKU: "sku", ProductVersion: "1.0.0"})
	flaky := &failAfterApply{inner: engine, failures: 1}
	verifier := webhooks.KeyedHashVerifier{Header: webhooks.DefaultKeyedHashHeader, Secret: testSecret}
	processor := webhooks.NewProcessor(verifier, factory.TxRunner(), flaky)

	body := checkoutEvent("evt_retry", "cs_retry", "paid", "retry@example.com", "Retry", nil)
	result, err := processor.Handle(ctx, signed(body))
	if err == nil {
		t.Fatalf("expected simulated failure")
	}
	if core.HTTPStatus(err) != http.StatusInternalServerError || result.EventID != "evt_retry" {
		t.Fatalf("expected 500 with event id, got %d %#v", core.HTTPStatus(err), result)
	}
	for _, table := range []string{"payment_webhook_events", "customers", "orders"} {
		if count := countRows(t, client, table); count != 0 {
			t.Fatalf("expected rollback to clear %s, got %d rows", table, count)
		}
	}

	result, err = processor.Handle(ctx, signed(body))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Duplicate || result.Status != core.ProcessingStatusProcessed {
		t.Fatalf("expected fresh processing on redelivery, got %#v", result)
	}
	stored, err := factory.WebhookEventStore().GetWebhookEvent(ctx, "evt_retry")
	if err != nil {
		t.Fatalf("get webhook event: %v", err)
	}
	if stored.ProcessingStatus != core.ProcessingStatusProcessed {
		t.Fatalf("expected processed admission row, got %q", stored.ProcessingStatus)
	}
}

func TestWebhookEventStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	processor, factory := newPipeline(t, client)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"id":"evt_%d","type":"invoice.paid","data":{"object":{"id":"in_%d"}}}`, i, i)
		if _, err := processor.Handle(ctx, signed(body)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	events, total, err := factory.WebhookEventStore().ListWebhookEvents(ctx, core.ProcessingStatusIgnored, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if total != 3 || len(events) != 2 {
		t.Fatalf("expected 2 of 3 ignored events, got %d of %d", len(events), total)
	}
}

type failAfterApply struct {
	inner    core.Reconciler
	failures int
}

func (f *failAfterApply) Apply(ctx context.Context, uow core.UnitOfWork, event core.ProviderEvent) (core.Outcome, error) {
	outcome, err := f.inner.Apply(ctx, uow, event)
	if err != nil {
		return outcome, err
	}
	if f.failures > 0 {
		f.failures--
		return core.Outcome{}, errors.New("simulated handler failure after writes")
	}
	return outcome, nil
}

func newPipeline(t *testing.T, client *persistence.Client) (*webhooks.Processor, *sqlstore.RepositoryFactory) {
	t.Helper()
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	engine := reconcile.NewEngine(reconcile.Defaults{Currency: "USD", ProductSKU: "genx-delay-vst3", ProductVersion: "0.1.0"})
	verifier := webhooks.KeyedHashVerifier{Header: webhooks.DefaultKeyedHashHeader, Secret: testSecret}
	return webhooks.NewProcessor(verifier, factory.TxRunner(), engine), factory
}

func checkoutEvent(eventID, sessionID, paymentStatus, email, name string, metadata map[string]string) string {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		metadataJSON = "{"
		first := true
		for key, value := range metadata {
			if !first {
				metadataJSON += ","
			}
			metadataJSON += fmt.Sprintf("%q:%q", key, value)
			first = false
		}
		metadataJSON += "}"
	}
	details := "{}"
	switch {
	case email != "" && name != "":
		details = fmt.Sprintf(`{"email":%q,"name":%q}`, email, name)
	case email != "":
		details = fmt.Sprintf(`{"email":%q,"name":null}`, email)
	}
	return fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"amount_total":1999,"currency":"usd","payment_status":%q,"payment_intent":"pi_%s","customer_details":%s,"metadata":%s}}}`,
		eventID, sessionID, paymentStatus, sessionID, details, metadataJSON,
	)
}

func signed(body string) core.InboundRequest {
	return core.InboundRequest{
		Headers: map[string]string{webhooks.DefaultKeyedHashHeader: webhooks.SignKeyedHash(testSecret, []byte(body))},
		Body:    []byte(body),
	}
}

func countRows(t *testing.T, client *persistence.Client, table string) int {
	t.Helper()
	var count int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM " + table).Scan(context.Background(), &count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:payments-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	if err := paymentmigrations.Register(ctx, func(_ context.Context, set paymentmigrations.Set) error {
		client.RegisterSQLMigrations(set.FS)
		return nil
	}, paymentmigrations.DialectSQLite); err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
