package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairhome/fairhome/internal/listingsync"
)

var syncSourceURL string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the listing sync once",
	Long: `Fetches the Chicago affordable rental housing feed, transforms it into
listings, and replaces the stored listing set in batched inserts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sourceURL := syncSourceURL
		if sourceURL == "" {
			sourceURL = cfg.Sync.SourceURL
		}

		runner := listingsync.NewRunner(st, newFetcher(), sourceURL)
		res := runner.Run(ctx)
		if res.Err != nil {
			return res.Err
		}

		fmt.Printf("Synced %d listings\n", res.Count)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSourceURL, "source-url", "", "override the upstream feed URL")
	rootCmd.AddCommand(syncCmd)
}
