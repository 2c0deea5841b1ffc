package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version and Commit are set at build time via -ldflags.
//
//	go build -ldflags "-X github.com/Yash-Prakash1/connector/internal/cli.Version=v0.1.0
//	  -X github.com/Yash-Prakash1/connector/internal/cli.Commit=48cae1d"
var (
	Version = ""
	Commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and commit hash",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("connector " + versionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionString renders "v0.1.0 (48cae1d)" style output, falling back to
// "dev" and the commit from embedded build info.
func versionString() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	c := Commit
	if c == "" {
		c = commitFromBuildInfo()
	}
	if c != "" {
		return fmt.Sprintf("%s (%s)", v, shortCommit(c))
	}
	return v
}

// commitFromBuildInfo extracts vcs.revision from Go's embedded build info.
func commitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// shortCommit returns the first 7 characters of a commit hash.
func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
