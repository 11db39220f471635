package gen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/keydir/internal/meta"
)

var (
	manDir string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for keydir",
	Long: `This command generates up-to-date man pages for every keydir
	command. By default, it creates the man page files in the "man"
	directory under the current directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return genManPages(cmd.Root(), manDir, cmd.OutOrStdout())
	},
}

func genManPages(root *cobra.Command, dir string, out io.Writer) error {
	header := &doc.GenManHeader{
		Section: "1",
		Manual:  "keydir Manual",
		Source:  fmt.Sprintf("keydir %s", meta.Version),
	}

	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}

	if _, err := os.Stat(dir); err != nil && os.IsNotExist(err) {
		fmt.Fprintln(out, "Directory", dir, "does not exist, creating...")
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	root.DisableAutoGenTag = true

	fmt.Fprintln(out, "Generating keydir man pages in", dir, "...")

	if err := doc.GenManTree(root, header, dir); err != nil {
		return err
	}

	fmt.Fprintln(out, "Done.")

	return nil
}

func init() {
	flags := ManPagesCmd.PersistentFlags()

	flags.StringVar(&manDir, "dir", "man/", "the directory to write the man pages.")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
