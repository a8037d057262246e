package main

import (
	"fmt"

	"payaid/internal/gst"

	"github.com/spf13/cobra"
)

func newGSTINCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "gstin", Short: "GSTIN tools"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <gstin>",
		Short: "Check a GSTIN's structure and check character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gstin := gst.NormalizeGSTIN(args[0])
			if err := gst.ValidateGSTIN(gstin); err != nil {
				return fmt.Errorf("%s: %w", gstin, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s valid (state %s)\n", gstin, gst.StateCode(gstin))
			return nil
		},
	})
	return cmd
}
