package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/metercore/metercore/adapters/sqlite"
	"github.com/metercore/metercore/app"
	"github.com/metercore/metercore/config"
	"github.com/metercore/metercore/domain/billing"
)

var (
	reportCustomer string
	reportOrg      string
	reportStart    string
	reportEnd      string
	reportMonth    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query usage summaries, analytics, and statements",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a usage summary for a customer or organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		reporting, cleanup, err := openReporting()
		if err != nil {
			return err
		}
		defer cleanup()

		start, end, err := reportRange()
		if err != nil {
			return err
		}

		ctx := context.Background()
		switch {
		case reportCustomer != "":
			s, err := reporting.CustomerSummary(ctx, reportCustomer, start, end)
			if err != nil {
				return err
			}
			printSummary(s.Calls, s.Successes, s.Failures, s.BytesIn, s.BytesOut, s.Cost)
		case reportOrg != "":
			s, err := reporting.OrganizationSummary(ctx, reportOrg, start, end)
			if err != nil {
				return err
			}
			printSummary(s.Calls, s.Successes, s.Failures, s.BytesIn, s.BytesOut, s.Cost)
		default:
			return fmt.Errorf("--customer or --org required")
		}
		return nil
	},
}

var reportAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print daily usage analytics for a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportCustomer == "" {
			return fmt.Errorf("--customer required")
		}
		reporting, cleanup, err := openReporting()
		if err != nil {
			return err
		}
		defer cleanup()

		start, end, err := reportRange()
		if err != nil {
			return err
		}

		a, err := reporting.CustomerAnalytics(context.Background(), reportCustomer, start, end)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tCALLS\tOK\tFAILED")
		for _, d := range a.Days {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", d.Date, d.Calls, d.Successes, d.Failures)
		}
		w.Flush()

		fmt.Printf("\nPeak day: %s (%d calls)\n", a.PeakDay, a.PeakDayCalls)
		fmt.Printf("Top kind: %s (%d calls)\n", a.TopKind, a.TopKindCalls)
		fmt.Printf("Success rate: %.1f%%\n", a.SuccessRate*100)
		return nil
	},
}

var reportStatementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Print a monthly statement for a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportCustomer == "" {
			return fmt.Errorf("--customer required")
		}
		reporting, cleanup, err := openReporting()
		if err != nil {
			return err
		}
		defer cleanup()

		month := time.Now().UTC()
		if reportMonth != "" {
			var err error
			month, err = time.Parse("2006-01", reportMonth)
			if err != nil {
				return fmt.Errorf("--month must be YYYY-MM: %w", err)
			}
		}

		st, err := reporting.CustomerStatement(context.Background(), reportCustomer, month)
		if err != nil {
			return err
		}

		fmt.Printf("Statement for %s (%s to %s)\n\n", st.CustomerID,
			st.PeriodStart.Format("2006-01-02"), st.PeriodEnd.Format("2006-01-02"))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tCALLS\tAMOUNT")
		for _, line := range st.Lines {
			fmt.Fprintf(w, "%s\t%d\t%s\n", line.Kind, line.Calls, billing.FormatAmount(line.Amount))
		}
		fmt.Fprintf(w, "TOTAL\t%d\t%s\n", st.Calls, billing.FormatAmount(st.Total))
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSummaryCmd, reportAnalyticsCmd, reportStatementCmd)

	reportCmd.PersistentFlags().StringVar(&reportCustomer, "customer", "", "customer id")
	reportCmd.PersistentFlags().StringVar(&reportOrg, "org", "", "organization name")
	reportCmd.PersistentFlags().StringVar(&reportStart, "start", "", "range start (YYYY-MM-DD, default 30 days ago)")
	reportCmd.PersistentFlags().StringVar(&reportEnd, "end", "", "range end (YYYY-MM-DD, default now)")
	reportStatementCmd.Flags().StringVar(&reportMonth, "month", "", "statement month (YYYY-MM, default current)")
}

// openReporting builds a reporting service straight on the database, for
// querying without a running server.
func openReporting() (*app.ReportingService, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, fmt.Errorf("report commands need the sqlite driver")
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	return app.NewReportingService(sqlite.NewUsageStore(db), logger), func() { db.Close() }, nil
}

func reportRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	var err error
	if reportStart != "" {
		if start, err = time.Parse("2006-01-02", reportStart); err != nil {
			return start, end, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
	}
	if reportEnd != "" {
		if end, err = time.Parse("2006-01-02", reportEnd); err != nil {
			return start, end, fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
		}
	}
	return start, end, nil
}

func printSummary(calls, ok, failed, bytesIn, bytesOut int64, cost float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Calls\t%d\n", calls)
	fmt.Fprintf(w, "Successes\t%d\n", ok)
	fmt.Fprintf(w, "Failures\t%d\n", failed)
	fmt.Fprintf(w, "Bytes in\t%d\n", bytesIn)
	fmt.Fprintf(w, "Bytes out\t%d\n", bytesOut)
	fmt.Fprintf(w, "Cost\t%s\n", billing.FormatAmount(cost))
	w.Flush()
}
