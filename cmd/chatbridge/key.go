package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var keyStdin bool

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored provider API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the provider API key",
	Long: `Store the provider API key in the configured secret store.

The key is read from a hidden prompt when stdin is a terminal, otherwise
from the first line of stdin.

Examples:
  chatbridge key set
  echo "$OPENROUTER_API_KEY" | chatbridge key set --stdin`,
	Args: cobra.NoArgs,
	RunE: runKeySet,
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored provider API key",
	Args:  cobra.NoArgs,
	RunE:  runKeyDelete,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyDeleteCmd)

	keySetCmd.Flags().BoolVar(&keyStdin, "stdin", false, "Read the key from stdin without prompting")
}

func runKeySet(cmd *cobra.Command, _ []string) error {
	value, err := readKey(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	if err := comps.service.SetAPIKey(ctx, value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
	return nil
}

func runKeyDelete(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	if err := comps.service.DeleteAPIKey(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key deleted")
	return nil
}

func readKey(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !keyStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
