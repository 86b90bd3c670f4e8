package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/viant/overseer/service/secret"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage encrypted channel credentials",
}

var secretStoreCmd = &cobra.Command{
	Use:   "store <url> [value]",
	Short: "Encrypt a credential at url; the value is read from the terminal when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		ref := &secret.Ref{URL: args[0], Key: key}
		value := ""
		if len(args) == 2 {
			value = args[1]
		} else {
			read, err := readSecret(cmd)
			if err != nil {
				return err
			}
			value = read
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("secret value was empty")
		}
		if err := secret.New().Store(cmd.Context(), ref, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", ref.URL)
		return nil
	},
}

func init() {
	secretStoreCmd.Flags().String("key", secret.DefaultKey, "scy encryption key")
	secretCmd.AddCommand(secretStoreCmd)
	rootCmd.AddCommand(secretCmd)
}

func readSecret(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("value argument required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Value: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	return string(data), nil
}
