package main

import (
	"os"

	"github.com/spf13/cobra"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	ledgerPath string
	budget     float64
	logLevel   string
}

func main() {
	var g globals

	rootCmd := &cobra.Command{
		Use:          "ticketcalc",
		Short:        "Break-even ticket pricing and sponsorship budget ledger",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.ledgerPath, "ledger", "", "ledger CSV path (default $TICKETCALC_LEDGER or planned_events.csv)")
	rootCmd.PersistentFlags().Float64Var(&g.budget, "budget", -1, "annual sponsorship budget, overriding the plan")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level for CLI diagnostics")

	rootCmd.AddCommand(validateCmd(&g))
	rootCmd.AddCommand(sweepCmd(&g))
	rootCmd.AddCommand(commitCmd(&g))
	rootCmd.AddCommand(ledgerCmd(&g))
	rootCmd.AddCommand(summaryCmd(&g))
	rootCmd.AddCommand(importCmd(&g))
	rootCmd.AddCommand(exportCmd(&g))
	rootCmd.AddCommand(resetCmd(&g))
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(serveCmd(&g))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-path]",
		Short: "Validate a plan file without pricing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(g, args[0])
		},
	}
}

func sweepCmd(g *globals) *cobra.Command {
	var event, allocations string

	cmd := &cobra.Command{
		Use:   "sweep [project-path]",
		Short: "Price an event at each candidate sponsorship allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSweep(g, args[0], event, allocations)
		},
	}

	cmd.Flags().StringVarP(&event, "event", "e", "", "event name (prompted when omitted)")
	cmd.Flags().StringVarP(&allocations, "allocations", "a", "", "comma-separated allocations (default: the plan's list)")
	return cmd
}

func commitCmd(g *globals) *cobra.Command {
	var event, allocations string
	var allocation float64

	cmd := &cobra.Command{
		Use:   "commit [project-path]",
		Short: "Commit one scenario of an event to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chosen *float64
			if cmd.Flags().Changed("allocation") {
				chosen = &allocation
			}
			return runCommit(g, args[0], event, allocations, chosen)
		},
	}

	cmd.Flags().StringVarP(&event, "event", "e", "", "event name (prompted when omitted)")
	cmd.Flags().StringVarP(&allocations, "allocations", "a", "", "comma-separated allocations to choose from")
	cmd.Flags().Float64Var(&allocation, "allocation", 0, "commit this allocation without prompting")
	return cmd
}

func ledgerCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger [project-path]",
		Short: "Show the committed events and remaining budget",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runLedger(g, projectArg(args))
		},
	}
}

func summaryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [project-path]",
		Short: "Show per-event costs, revenue and budget use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSummary(g, projectArg(args))
		},
	}
}

func importCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import [csv-file] [project-path]",
		Short: "Replace the ledger with events from a CSV export",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runImport(g, args[0], projectArg(args[1:]))
		},
	}
}

func exportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export [project-path]",
		Short: "Write the ledger as CSV to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExport(g, projectArg(args))
		},
	}
}

func resetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [project-path]",
		Short: "Clear all committed events and restore the full budget",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReset(g, projectArg(args))
		},
	}
}

func quoteCmd() *cobra.Command {
	var in quoteFlags

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a single-tier event from flags alone",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runQuote(in)
		},
	}

	cmd.Flags().IntVar(&in.headcount, "headcount", 0, "tickets sold")
	cmd.Flags().Float64Var(&in.fixed, "fixed", 0, "fixed costs")
	cmd.Flags().Float64Var(&in.sponsorship, "sponsorship", 0, "sponsorship applied")
	cmd.Flags().Float64Var(&in.catering, "catering", 0, "total catering cost")
	cmd.Flags().Float64Var(&in.merch, "merch", 0, "merch cost per ticket")
	cmd.Flags().Float64Var(&in.refund, "refund-rate", 0.03, "expected refund rate")
	cmd.Flags().Float64Var(&in.fee, "fee-rate", 0.04, "platform fee rate")
	_ = cmd.MarkFlagRequired("headcount")
	return cmd
}

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [project-path]",
		Short: "Serve the planning API over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runServe(g, projectArg(args), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $TICKETCALC_ADDR or :8080)")
	return cmd
}

func projectArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
