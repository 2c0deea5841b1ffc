package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yash-Prakash1/connector/internal/pool"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry queued shared-pool uploads",
	Long: `Flush the upload queue against the shared pool. Contributions that
could not be delivered at session end are queued locally; sync retries them
and removes the ones that land. Failed retries stay queued with a bumped
attempt counter.`,
	Example: `  connector sync
  connector sync --pool-url https://pool.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		ctx := context.Background()
		before, err := s.PendingUploads(ctx)
		if err != nil {
			return fmt.Errorf("list pending uploads: %w", err)
		}

		log := newLogger(verbose)
		defer log.Sync()
		client := pool.New(poolURL, envOr(poolKey, "CONNECTOR_POOL_API_KEY"), s, log)
		client.FlushQueue(ctx)

		after, err := s.PendingUploads(ctx)
		if err != nil {
			return fmt.Errorf("list pending uploads: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]int{
				"delivered": len(before) - len(after),
				"remaining": len(after),
			})
		}
		fmt.Printf("Delivered %d of %d queued uploads; %d remaining.\n",
			len(before)-len(after), len(before), len(after))
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&poolURL, "pool-url", "", "shared knowledge pool base URL")
	rootCmd.AddCommand(syncCmd)
}
