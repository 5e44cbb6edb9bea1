package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/pharmassist/internal/config"
	"github.com/stupiduntilnot/pharmassist/internal/logging"
)

// cli carries state shared by subcommands.
type cli struct {
	verbose bool
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "pharmassist",
		Short: "Conversational shopping assistant for a pharmacy marketplace",
		Long: `pharmassist answers customer questions about pharmacies, products, carts,
orders and prescriptions using only facts assembled from the document store.

Configuration comes from the environment (a .env file is loaded when present)
and an optional YAML file named by PHARMASSIST_CONFIG.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if c.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, cfg.LogDevelopment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(c),
		newSeedCmd(c),
		newSearchCmd(c),
		newHistoryCmd(c),
		newEventsCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
