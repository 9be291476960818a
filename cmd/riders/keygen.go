package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/codec"
	"github.com/riders-api/riders/generate"
)

var (
	keygenOut      string
	secretPassword int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA key pair",
	Long: `Generate a 2048-bit RSA key pair.

Without --out the private key (PKCS#8 PEM) and the public key (OpenSSH
format) are printed. With --out they are written to <out> and <out>.pub.`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print a random secret or password",
	Long: `Print a URL-safe random secret suitable for auth.token_secret.

With --password n a password of n characters is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runSecret,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "write the key pair to this path")
	secretCmd.Flags().IntVar(&secretPassword, "password", 0, "print a password of this length instead")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(secretCmd)
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	pair, err := codec.GenerateKeyPair()
	if err != nil {
		return err
	}

	if keygenOut == "" {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", pair.PrivateKey, pair.PublicKey)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(keygenOut), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(keygenOut, []byte(pair.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(keygenOut+".pub", []byte(pair.PublicKey+"\n"), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Key pair written to %s and %s.pub\n", keygenOut, keygenOut)
	return nil
}

func runSecret(cmd *cobra.Command, _ []string) error {
	var (
		value string
		err   error
	)
	if secretPassword > 0 {
		value, err = generate.Password(secretPassword)
	} else {
		value, err = generate.Secret()
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}
