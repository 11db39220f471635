package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/keydir/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "keydir",
	Short: "A minimal username to public key directory service",
	Long: `keydir registers 32 byte public keys against usernames and serves
lookups over a small TCP protocol.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(GetCmd)
	RootCmd.AddCommand(AddCmd)
	RootCmd.AddCommand(KeygenCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
