// cmd/locators.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/marketcheck/internal/locator"
)

// newLocatorsCmd creates the `locators` command, which prints and validates
// the configured XPath templates.
func newLocatorsCmd() *cobra.Command {
	var value string

	locatorsCmd := &cobra.Command{
		Use:   "locators",
		Short: "Print and validate the configured element locators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return printLocators(cmd.OutOrStdout(), locator.NewSet(cfg.Locators), value)
		},
	}
	locatorsCmd.Flags().StringVar(&value, "value", "", "value substituted into templated locators (default \"sample\")")
	return locatorsCmd
}

// printLocators lists every locator, resolved with sample when it has
// placeholders, and fails if the set is invalid.
func printLocators(out io.Writer, set *locator.Set, sample string) error {
	if sample == "" {
		sample = "sample"
	}
	for _, key := range set.Keys() {
		tmpl, err := set.Template(key)
		if err != nil {
			return err
		}
		tokens, err := set.Placeholders(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-20s %s\n", key, tmpl)
		if len(tokens) > 0 {
			resolved, err := set.Resolve(key, sample)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-20s   %s -> %s\n", "", strings.Join(tokens, ", "), resolved)
		}
	}

	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid locators: %w", err)
	}
	fmt.Fprintf(out, "\n%d locators OK\n", len(set.Keys()))
	return nil
}
