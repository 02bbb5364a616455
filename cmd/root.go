package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairhome/fairhome/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fairhome",
	Short: "Chicago affordable-housing listing service",
	Long:  "Syncs the Chicago affordable rental housing feed into a geospatial store and serves listings, neighborhood and ward boundaries, and sync triggers over HTTP.",
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
