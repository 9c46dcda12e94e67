package main

import (
	"encoding/json"
	"io"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/query"
	"github.com/spf13/cobra"
)

func inspectCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print stored webhook events and orders as JSON",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "event <event_id>",
		Short: "Show one admitted webhook event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, func() (any, error) {
				return gocommand.Query[query.GetWebhookEventMessage, core.WebhookEvent](
					cmd.Context(),
					query.GetWebhookEventMessage{EventID: args[0]},
				)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "order <checkout_session_id>",
		Short: "Show the order for a checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, func() (any, error) {
				return gocommand.Query[query.GetOrderMessage, core.Order](
					cmd.Context(),
					query.GetOrderMessage{CheckoutSessionID: args[0]},
				)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "customer <customer_id>",
		Short: "Show a customer with their orders, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, func() (any, error) {
				return gocommand.Query[query.GetCustomerOrdersMessage, query.CustomerOrders](
					cmd.Context(),
					query.GetCustomerOrdersMessage{CustomerID: args[0]},
				)
			})
		},
	})

	var (
		status string
		limit  int
	)
	events := &cobra.Command{
		Use:   "events",
		Short: "List admitted webhook events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBus(cmd, flags, func() (any, error) {
				return gocommand.Query[query.ListWebhookEventsMessage, query.WebhookEventPage](
					cmd.Context(),
					query.ListWebhookEventsMessage{Status: core.ProcessingStatus(status), Limit: limit},
				)
			})
		},
	}
	events.Flags().StringVar(&status, "status", "", "filter by processing status")
	events.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	cmd.AddCommand(events)
	return cmd
}

// withBus registers the payments handlers on a fresh go-command registry for
// the duration of one CLI invocation and prints the result.
func withBus(cmd *cobra.Command, flags *globalFlags, run func() (any, error)) error {
	svc, client, err := flags.openService(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	subs, err := svc.RegisterHandlers(gocommand.NewRegistryAdapter(command.NewRegistry()))
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()

	out, err := run()
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
