package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/curve25519"
)

var KeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an X25519 key pair suitable for registering",
	Long: `Generate an X25519 key pair. The public half is 32 bytes and can be
registered with 'keydir add'. Keep the private half to yourself, keydir never
needs it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		public, private, err := generateKeyPair()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\n", hex.EncodeToString(public))
		fmt.Fprintf(cmd.OutOrStdout(), "private: %s\n", hex.EncodeToString(private))

		return nil
	},
}

func generateKeyPair() (public, private []byte, err error) {
	private = make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(private); err != nil {
		return nil, nil, fmt.Errorf("Failed to read randomness: %w", err)
	}

	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}

	return public, private, nil
}
