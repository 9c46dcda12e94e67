package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"
	payments "github.com/goliatone/go-payments"
	"github.com/goliatone/go-payments/adapters/gologger"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/database"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

type globalFlags struct {
	envFile        string
	port           string
	databaseDriver string
	databaseURL    string
	stripeMode     string
	verbose        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "payments",
		Short:         "Payment webhook reconciliation and checkout service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if flags.verbose {
				fiberlog.SetLevel(fiberlog.LevelDebug)
			}
			return loadEnvFile(flags.envFile)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&flags.port, "port", "", "HTTP port (overrides PORT)")
	pf.StringVar(&flags.databaseDriver, "database-driver", "", "database driver: sqlite3 or postgres")
	pf.StringVar(&flags.databaseURL, "database-url", "", "database DSN (overrides DATABASE_URL)")
	pf.StringVar(&flags.stripeMode, "stripe-mode", "", "checkout provider mode: mock or test")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(migrateCmd(flags))
	rootCmd.AddCommand(inspectCmd(flags))
	rootCmd.AddCommand(replayCmd(flags))
	return rootCmd
}

// loadEnvFile is a no-op when the file does not exist; the process
// environment wins over values from the file.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (f *globalFlags) runtimeConfig() core.Config {
	cfg := core.Config{}
	if port := strings.TrimSpace(f.port); port != "" {
		cfg.HTTP.Address = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(f.databaseDriver))
	cfg.Database.DSN = strings.TrimSpace(f.databaseURL)
	if mode := strings.ToLower(strings.TrimSpace(f.stripeMode)); mode != "" {
		cfg.Checkout.ProviderMode = mode
	}
	return cfg
}

func (f *globalFlags) loadConfig(ctx context.Context) (core.Config, error) {
	return core.LoadConfig(ctx, core.NewEnvConfigLoader(), f.runtimeConfig())
}

// openService resolves configuration, opens the database and assembles the
// payments service. The caller owns the returned client.
func (f *globalFlags) openService(ctx context.Context, migrate bool, opts ...payments.Option) (*payments.Service, *persistence.Client, error) {
	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, client, cfg.Database.Driver); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	opts = append([]payments.Option{
		payments.WithLoggerProvider(gologger.FiberProvider{}),
		payments.WithPersistenceClient(client),
		payments.WithRuntimeConfig(f.runtimeConfig()),
	}, opts...)
	svc, err := payments.New(ctx, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return svc, client, nil
}
