package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/policygen/internal/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "policygen %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		},
	}
}
