package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	payments "github.com/goliatone/go-payments"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		autoMigrate bool
		accessLog   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook and checkout HTTP server",
		Long: `Start the HTTP server.

Examples:
  payments serve
  payments serve --port 8080 --migrate
  payments serve --database-driver postgres --database-url postgres://localhost/payments`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, client, err := flags.openService(ctx, autoMigrate, payments.WithAccessLog(accessLog))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			app, err := svc.App()
			if err != nil {
				return err
			}

			logger := svc.Logger()
			address := svc.Config().HTTP.Address
			errs := make(chan error, 1)
			go func() {
				logger.Info("payments http server listening", "address", address)
				errs <- app.Listen(address)
			}()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}

			logger.Info("payments http server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply migrations before serving")
	cmd.Flags().BoolVar(&accessLog, "access-log", true, "log every HTTP request")
	return cmd
}
