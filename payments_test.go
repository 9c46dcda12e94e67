package payments_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	payments "github.com/goliatone/go-payments"
	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/database"
	paymentsquery "github.com/goliatone/go-payments/query"
	"github.com/goliatone/go-payments/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootSecret = "whsec_root"

func newService(t *testing.T) *payments.Service {
	t.Helper()
	ctx := context.Background()
	dbConfig := core.DatabaseConfig{
		Driver: core.DriverSQLite,
		DSN:    fmt.Sprintf("file:payments-root-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
	}
	client, err := database.Open(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, database.Migrate(ctx, client, dbConfig.Driver))

	runtime := core.Config{}
	runtime.Database = dbConfig
	runtime.Webhook.Secret = rootSecret

	svc, err := payments.New(ctx,
		payments.WithPersistenceClient(client),
		payments.WithConfigLoader(core.EnvConfigLoader{Lookup: func(string) (string, bool) { return "", false }}),
		payments.WithRuntimeConfig(runtime),
	)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := payments.New(context.Background(),
		payments.WithConfigLoader(core.EnvConfigLoader{Lookup: func(string) (string, bool) { return "", false }}),
	)
	require.Error(t, err)
}

func TestService_WebhookToOrder(t *testing.T) {
	svc := newService(t)
	assert.Equal(t, core.ProviderModeMock, svc.Config().Checkout.ProviderMode)
	assert.Equal(t, rootSecret, svc.Config().Webhook.Secret)

	app, err := svc.App()
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_root_1","type":"checkout.session.completed","data":{"object":{"id":"cs_root_1","amount_total":4900,"currency":"usd","payment_status":"paid","customer_details":{"email":"Buyer@Example.com","name":"Buyer"},"metadata":{"product_sku":"genx-delay-vst3"}}}}`)
	send := func() map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set(webhooks.DefaultKeyedHashHeader, webhooks.SignKeyedHash(rootSecret, payload))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		defer resp.Body.Close()
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	first := send()
	assert.Equal(t, false, first["idempotent"])
	assert.Equal(t, "processed", first["processingStatus"])

	second := send()
	assert.Equal(t, true, second["idempotent"])

	ctx := context.Background()
	order, err := svc.Facade().Queries().GetOrder.Query(ctx, paymentsquery.GetOrderMessage{CheckoutSessionID: "cs_root_1"})
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(4900), order.AmountCents)
	assert.Equal(t, "genx-delay-vst3", order.ProductSKU)

	customer, err := svc.Facade().Queries().GetCustomer.Query(ctx, paymentsquery.GetCustomerMessage{CustomerID: order.CustomerID})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", customer.Email)
}

func TestService_RegisterHandlersOnBus(t *testing.T) {
	svc := newService(t)
	subs, err := svc.RegisterHandlers(gocommand.NewRegistryAdapter(command.NewRegistry()))
	require.NoError(t, err)
	defer subs.Unsubscribe()

	payload := []byte(`{"id":"evt_root_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	result, ok, err := gocommand.DispatchWithResult[paymentscommand.ReplayEventMessage, core.ProcessResult](
		context.Background(),
		paymentscommand.ReplayEventMessage{Payload: payload},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.ProcessingStatusIgnored, result.Status)

	event, err := gocommand.Query[paymentsquery.GetWebhookEventMessage, core.WebhookEvent](
		context.Background(),
		paymentsquery.GetWebhookEventMessage{EventID: "evt_root_2"},
	)
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingStatusIgnored, event.ProcessingStatus)
}
