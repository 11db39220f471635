package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/keydir/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the keydir build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), meta.GetInfo().String())
	},
}
