package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/agent"
	"github.com/Yash-Prakash1/connector/internal/config"
	"github.com/Yash-Prakash1/connector/internal/device"
	"github.com/Yash-Prakash1/connector/internal/envscan"
	"github.com/Yash-Prakash1/connector/internal/exec"
	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/oracle"
	"github.com/Yash-Prakash1/connector/internal/pool"
)

var verbose bool

var connectCmd = &cobra.Command{
	Use:   "connect [device]",
	Short: "Run a connection session for a device",
	Long: `Attempt to establish connectivity to an instrument. The session first
tries to replay a proven pattern for the current starting state; if none
qualifies, it runs a bounded loop asking the decision oracle for one action
at a time. Every session feeds what it learned back into the local store and,
when enabled, the shared pool.

Side-effecting actions ask for confirmation unless --yes is given.`,
	Example: `  connector connect rigol_ds1054z
  connector connect rigol_dp832 --yes
  connector connect --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID := ""
		if len(args) == 1 {
			deviceID = args[0]
		}
		if deviceID == "" {
			cfg, err := config.LoadFrom(configPath)
			if err == nil {
				deviceID = cfg.DefaultDevice
			}
		}
		registry := device.Default()
		if deviceID == "" {
			return fmt.Errorf("no device given; known devices: %s", strings.Join(registry.IDs(), ", "))
		}
		if oracleURL == "" {
			return fmt.Errorf("oracle_url is not set; use: connector config oracle_url <url>")
		}

		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		log := newLogger(verbose)
		defer log.Sync()

		profile := registry.Lookup(deviceID)
		orch := &agent.Orchestrator{
			Store:   s,
			Pool:    pool.New(poolURL, envOr(poolKey, "CONNECTOR_POOL_API_KEY"), s, log),
			Oracle:  oracle.New(oracleURL, envOr(oracleKey, "CONNECTOR_ORACLE_API_KEY")),
			Scanner: envscan.New(nil, log),
			NewExecutor: func(env model.Environment, profile device.Profile) agent.Executor {
				return exec.New(env, profile, confirmPrompt, askPrompt, nil)
			},
			Confirm:       confirmPrompt,
			Log:           log,
			MaxIterations: maxIter,
			Version:       versionString(),
		}

		result := orch.Run(context.Background(), profile)

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printResult(result, profile)
		}
		if !result.Success {
			return fmt.Errorf("connection failed: %s", result.Err)
		}
		return nil
	},
}

func init() {
	connectCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "run side-effecting actions without asking")
	connectCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each step to stderr")
	connectCmd.Flags().IntVar(&maxIter, "max-iterations", agent.DefaultMaxIterations, "maximum oracle-driven actions per session")
	connectCmd.Flags().StringVar(&oracleURL, "oracle-url", "", "decision oracle base URL")
	connectCmd.Flags().StringVar(&poolURL, "pool-url", "", "shared knowledge pool base URL")
	rootCmd.AddCommand(connectCmd)
}

func printResult(res model.SessionResult, profile device.Profile) {
	color := isTTY(os.Stdout)
	if res.Success {
		fmt.Printf("%s %s connected (%d steps, %s)\n",
			bold("OK", color), profile.Name, res.Steps, res.Duration.Round(time.Second))
		if res.Summary != "" {
			fmt.Println(res.Summary)
		}
		return
	}
	fmt.Printf("%s could not connect %s after %d steps: %s\n",
		bold("FAILED", color), profile.Name, res.Steps, res.Err)
}

// newLogger builds the stderr logger for a session.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// confirmPrompt asks the user to approve a side-effecting action.
func confirmPrompt(prompt string) bool {
	if autoConfirm {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// askPrompt relays an oracle question to the user.
func askPrompt(question string, choices []string) string {
	fmt.Println(question)
	for i, c := range choices {
		fmt.Printf("  %d) %s\n", i+1, c)
	}
	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func envOr(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}
