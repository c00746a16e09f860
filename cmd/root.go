package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "litigio-cli",
	Short: "Judicial process collection engine",
	Long:  "Discovers and downloads judicial processes from the PDPJ unified API per entity: multi-strategy search, dedup, prioritization, resilient detail download.",
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
