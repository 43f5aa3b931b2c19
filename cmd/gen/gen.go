package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups the generators that produce respd documentation from the
// command tree.
var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for respd",
	Long: `Generate documentation for respd

Usage
	respd gen man --dir ./man
`,
	Args: cobra.NoArgs,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
