package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/envscan"
	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/replay"
)

var patternsOS string

var patternsCmd = &cobra.Command{
	Use:   "patterns [goal]",
	Short: "List learned resolution patterns",
	Long: `Show the resolution patterns cached locally for a goal, ordered by
confidence. Patterns marked replayable have cleared both the attempt-count
and success-rate thresholds and would be tried before consulting the oracle.

Without a goal argument, patterns for all known devices are shown.`,
	Example: `  connector patterns rigol_ds1054z
  connector patterns --os linux
  connector patterns --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		goals := device.Default().IDs()
		if len(args) == 1 {
			goals = args[:1]
		}
		os_ := model.OS(patternsOS)
		if os_ == "" {
			os_ = envscan.HostOS()
		}

		var patterns []model.ResolutionPattern
		for _, goal := range goals {
			found, err := s.CachedPatterns(context.Background(), goal, os_)
			if err != nil {
				return fmt.Errorf("list patterns: %w", err)
			}
			patterns = append(patterns, found...)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(patterns)
		}

		if len(patterns) == 0 {
			fmt.Println("No patterns learned yet.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tGOAL\tSTEPS\tSUCCESS\tATTEMPTS\tREPLAYABLE")
		for _, p := range patterns {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f%%\t%d\t%s\n",
				truncate(p.ID, 22), p.Goal, len(p.Steps),
				p.Stats.SuccessRate*100, p.Stats.TotalCount,
				yesNo(replayable(p)))
		}
		return w.Flush()
	},
}

func init() {
	patternsCmd.Flags().StringVar(&patternsOS, "os", "", "operating system to list patterns for (default: current)")
	rootCmd.AddCommand(patternsCmd)
}

func replayable(p model.ResolutionPattern) bool {
	return p.Stats.TotalCount >= replay.ConfidenceThreshold &&
		p.Stats.SuccessRate >= replay.SuccessRateThreshold
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
