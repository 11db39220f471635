package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generators for keydir documentation",
	Long:  `Generators for keydir documentation`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
