package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// VersionInfo is the payload of `chatsync version --json`.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := VersionInfo{Version: version, Commit: commit, Date: date, Go: runtime.Version()}
		if IsJSONOutput() {
			return WriteOutput(os.Stdout, info)
		}
		fmt.Fprintf(os.Stdout, "chatsync %s (commit %s, built %s, %s)\n", info.Version, info.Commit, info.Date, info.Go)
		return nil
	},
}
