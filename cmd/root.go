package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/respd/cmd/gen"
	"github.com/luma/respd/internal/meta"
)

var RootCmd = &cobra.Command{
	Use:   "respd",
	Short: "A small in-memory key value server speaking the Redis protocol",
	Long: `respd is a small in-memory key value server that speaks RESP2, the
Redis serialization protocol. Any Redis client, or plain telnet, can talk to it.

Usage
	respd start
	respd call SET key value
`,
	Version:       meta.GetInfo().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(CallCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := meta.GetInfo()

		fmt.Fprintf(cmd.OutOrStdout(), "respd %s (%s, %s) built %s with %s for %s\n",
			info.Version, info.Build, info.Branch, info.BuildTime, info.GoVersion, info.Platform)
	},
}

// Execute runs the root command and exits non zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
