package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/coordinator"
	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/util"
)

var (
	validateEntry string
	validateCheck bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configured entries",
	Long: `Validate the configured controller entries.

Checks URLs, ports and credentials. With --check, also logs in and
renders each entry's map once.

Examples:
  netmap validate
  netmap validate --entry home --check`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateEntry, "entry", "", "Entry ID (default: all entries)")
	validateCmd.Flags().BoolVar(&validateCheck, "check", false, "Also authenticate against the controller")
}

func runValidate(cmd *cobra.Command, args []string) error {
	entries, err := selectEntries(validateEntry)
	if err != nil {
		return err
	}

	failed := 0
	for _, ec := range entries {
		if err := validateOne(cmd.Context(), ec); err != nil {
			failed++
			fmt.Printf("✗ %s: %s (%s)\n", ec.ID, err, errorKey(err))
			continue
		}
		fmt.Printf("✓ %s\n", ec.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d entries invalid", failed, len(entries))
	}
	return nil
}

func validateOne(ctx context.Context, ec util.EntryConfig) error {
	if err := util.ValidateEntry(ec); err != nil {
		return err
	}
	if !validateCheck {
		return nil
	}
	coord := coordinator.New(ec.Entry(), coordinator.ClientFactory(func() {
		util.Warn("%s: TLS certificate verification is disabled", ec.ID)
	}))
	return coord.FirstRefresh(ctx)
}

// errorKey names the most specific failure kind in the chain.
func errorKey(err error) model.Kind {
	for _, k := range []model.Kind{
		model.KindInvalidAuth,
		model.KindCannotConnect,
		model.KindRenderFailed,
	} {
		if model.IsKind(err, k) {
			return k
		}
	}
	return model.KindOf(err)
}
