package cmd

import (
	"fmt"
	"runtime"

	"github.com/harness/fetch-artifact/cmd/cmdutils"

	"github.com/spf13/cobra"
)

// newVersionCmd returns the version command
func newVersionCmd(f *cmdutils.Factory, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fetch-artifact",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(f.Out, "fetch-artifact version %s\n", version)
			fmt.Fprintf(f.Out, "Built with %s\n", runtime.Version())
		},
	}
}
