package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "needscan",
	Short: "Geographic needs-assessment pipeline",
	Long:  "Scores subnational units from tabular indicator data, clusters them, assigns need levels, and joins the result onto administrative boundaries for CSV and map export.",
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
