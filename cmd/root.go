package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumenlend/tvlscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tvlscan",
	Short: "TVL aggregation for the lending protocol",
	Long:  "Discovers capability objects from the chain's event log, resolves them, fetches per-position financials under adaptive rate control, and reports total value locked.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
