package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	"github.com/spf13/cobra"
)

func replayCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <file|->",
		Short: "Process a stored provider event without signature verification",
		Long: `Replay feeds a provider event document through the same admission
guard and reconciliation as the webhook endpoint. Events that were already
admitted are reported as duplicates.

Examples:
  payments replay evt_1NG8Du2eZvKYlo2CUI79vXWy.json
  cat event.json | payments replay -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withBus(cmd, flags, func() (any, error) {
				result, _, err := gocommand.DispatchWithResult[paymentscommand.ReplayEventMessage, core.ProcessResult](
					cmd.Context(),
					paymentscommand.ReplayEventMessage{Payload: payload},
				)
				if err != nil && result.EventID != "" {
					return nil, fmt.Errorf("replay %s: %w", result.EventID, err)
				}
				return result, err
			})
		},
	}
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return payload, nil
}
