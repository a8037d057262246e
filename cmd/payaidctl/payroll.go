package main

import (
	"fmt"
	"io"
	"time"

	"payaid/internal/gst"
	"payaid/internal/statutory"

	"github.com/spf13/cobra"
)

func newPayrollCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "payroll", Short: "Payroll tools"}

	var (
		profile   statutory.SalaryProfile
		month     int
		rulesPath string
		summary   bool
	)
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Compute one month's payslip from rupee amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := statutory.Default()
			if rulesPath != "" {
				loaded, err := statutory.Load(rulesPath)
				if err != nil {
					return err
				}
				rules = loaded
			}
			m := time.Month(month)
			if month == 0 {
				m = a.now().Month()
			}
			slip, err := statutory.ComputePayslip(rules, inPaise(profile), m)
			if err != nil {
				return err
			}
			if summary {
				return printSummary(cmd.OutOrStdout(), slip)
			}
			return printJSON(cmd.OutOrStdout(), slip)
		},
	}
	flags := preview.Flags()
	flags.Int64Var(&profile.Basic, "basic", 0, "monthly basic in rupees")
	flags.Int64Var(&profile.HRA, "hra", 0, "monthly HRA in rupees")
	flags.Int64Var(&profile.Special, "special", 0, "monthly special allowance in rupees")
	flags.Int64Var(&profile.Other, "other", 0, "other monthly allowances in rupees")
	flags.StringVar(&profile.State, "state", "", "work state (e.g. MH, KA) for professional tax")
	flags.StringVar(&profile.Regime, "regime", statutory.RegimeNew, "income tax regime: new or old")
	flags.Int64Var(&profile.Declared80C, "declared-80c", 0, "annual 80C declaration in rupees")
	flags.Int64Var(&profile.Declared80D, "declared-80d", 0, "annual 80D declaration in rupees")
	flags.BoolVar(&profile.PFOptOut, "pf-opt-out", false, "employee opted out of PF")
	flags.BoolVar(&profile.PFUncapped, "pf-uncapped", false, "compute PF on full basic")
	flags.IntVar(&month, "month", 0, "payroll month 1-12 (defaults to the current month)")
	flags.StringVar(&rulesPath, "rules", "", "statutory rules YAML (defaults to the built-in table)")
	flags.BoolVar(&summary, "summary", false, "print a formatted summary instead of JSON")
	_ = preview.MarkFlagRequired("basic")

	cmd.AddCommand(preview)
	return cmd
}

func inPaise(p statutory.SalaryProfile) statutory.SalaryProfile {
	p.Basic *= 100
	p.HRA *= 100
	p.Special *= 100
	p.Other *= 100
	p.Declared80C *= 100
	p.Declared80D *= 100
	return p
}

func printSummary(w io.Writer, slip statutory.Payslip) error {
	rows := []struct {
		label  string
		amount int64
	}{
		{"Gross", slip.Gross},
		{"PF (employee)", slip.PF.Employee},
		{"ESI (employee)", slip.ESI.Employee},
		{"Professional tax", slip.ProfessionalTax},
		{"TDS", slip.TDS.Monthly},
		{"Net pay", slip.NetPay},
		{"Employer cost", slip.EmployerCost},
	}
	if _, err := fmt.Fprintf(w, "%s payslip (%s regime)\n", slip.Month, slip.TDS.Regime); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-18s %s\n", row.label, gst.FormatINR(row.amount)); err != nil {
			return err
		}
	}
	return nil
}
