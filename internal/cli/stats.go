package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Yash-Prakash1/connector/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics about stored sessions",
	Long: `Display a summary of session data: totals, success rate, learned
patterns and error resolutions, pending pool uploads, the most attempted
devices, date range, and recent activity counts.`,
	Example: `  connector stats
  connector stats --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		st, err := s.SessionStats(context.Background())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatsText(st)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStatsText(st store.Stats) {
	color := isTTY(os.Stdout)

	fmt.Printf("Total sessions:     %d\n", st.TotalSessions)
	fmt.Printf("Successes:          %d (%.0f%%)\n", st.Successes, st.SuccessRate*100)
	fmt.Printf("Learned patterns:   %d\n", st.Patterns)
	fmt.Printf("Error resolutions:  %d\n", st.ErrorResolutions)
	fmt.Printf("Pending uploads:    %d\n", st.PendingUploads)

	if st.TotalSessions == 0 {
		return
	}

	if len(st.TopGoals) > 0 {
		fmt.Println()
		fmt.Println(bold("Most attempted devices:", color))
		for _, g := range st.TopGoals {
			fmt.Printf("  %-24s %d\n", g.Name, g.Count)
		}
	}

	fmt.Println()
	fmt.Printf("First session:      %s\n", humanize.Time(st.Earliest))
	fmt.Printf("Latest session:     %s\n", humanize.Time(st.Latest))
	fmt.Printf("Last 24 hours:      %d\n", st.Last24h)
	fmt.Printf("Last 7 days:        %d\n", st.Last7d)
	fmt.Printf("Last 30 days:       %d\n", st.Last30d)
}
