package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"wheel-screener/models"
	"wheel-screener/services"
)

var screenCmd = &cobra.Command{
	Use:   "screen --tickers AAPL,MSFT",
	Short: "Run one screening pass and print the ranked candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}

		tickers, err := cmd.Flags().GetStringSlice("tickers")
		if err != nil {
			return fmt.Errorf("error getting tickers: %w", err)
		}
		source, err := cmd.Flags().GetString("source")
		if err != nil {
			return fmt.Errorf("error getting source: %w", err)
		}
		criteria, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		resp, err := a.screening.Run(ctx, services.ScreenRequest{
			Tickers:  tickers,
			Source:   source,
			Criteria: criteria,
		})
		if err != nil {
			return err
		}

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("error getting limit: %w", err)
		}
		printResponse(cmd.OutOrStdout(), resp, limit)

		csvPath, err := cmd.Flags().GetString("csv")
		if err != nil {
			return fmt.Errorf("error getting csv: %w", err)
		}
		if csvPath != "" {
			if err := exportCSV(csvPath, resp.Candidates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d candidates to %s\n", len(resp.Candidates), csvPath)
		}
		return nil
	},
}

func init() {
	f := screenCmd.Flags()
	f.StringSlice("tickers", nil, "comma separated tickers to screen")
	f.String("source", "", "data source: synthetic, liveQuotes or brokerFeed")
	f.Float64("min-yield", 0, "minimum premium yield %")
	f.Int("max-dte", 0, "maximum days to expiration")
	f.Float64("max-delta", 0, "maximum absolute delta")
	f.Float64("k", 0, "assignment score moneyness decay")
	f.String("sort", "", "sort field: yield, assignment_score, prob_of_profit, moneyness, return_on_risk")
	f.Bool("asc", false, "sort ascending (defaults to ascending only for assignment_score)")
	f.Int("limit", 0, "print at most this many rows (0 for all)")
	f.String("csv", "", "also export the candidates to this CSV file")
	_ = screenCmd.MarkFlagRequired("tickers")
}

// criteriaFromFlags collects the explicitly set flags as overrides
func criteriaFromFlags(cmd *cobra.Command) (*models.CriteriaOverrides, error) {
	o := &models.CriteriaOverrides{}
	f := cmd.Flags()

	if f.Changed("min-yield") {
		v, err := f.GetFloat64("min-yield")
		if err != nil {
			return nil, err
		}
		o.MinYieldPct = &v
	}
	if f.Changed("max-dte") {
		v, err := f.GetInt("max-dte")
		if err != nil {
			return nil, err
		}
		o.MaxDaysToExpiration = &v
	}
	if f.Changed("max-delta") {
		v, err := f.GetFloat64("max-delta")
		if err != nil {
			return nil, err
		}
		o.MaxAbsDelta = &v
	}
	if f.Changed("k") {
		v, err := f.GetFloat64("k")
		if err != nil {
			return nil, err
		}
		o.KParam = &v
	}
	if f.Changed("sort") {
		s, err := f.GetString("sort")
		if err != nil {
			return nil, err
		}
		field, err := models.ParseSortField(s)
		if err != nil {
			return nil, err
		}
		o.SortField = &field
	}
	if f.Changed("asc") {
		v, err := f.GetBool("asc")
		if err != nil {
			return nil, err
		}
		o.SortAscending = &v
	}
	return o, nil
}

func printResponse(w io.Writer, resp *services.ScreenResponse, limit int) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", resp.RunID, resp.Source, resp.Status)
	for _, d := range resp.Diagnostics {
		fmt.Fprintf(w, "  %s [%s] %s: %s\n", d.Ticker, d.Source, d.Kind, d.Message)
	}
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
		return
	}

	rows := resp.Candidates
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Ticker", "Strike", "DTE", "Premium", "Yield %", "AS", "POP %", "Moneyness %", "RoR %", "Breakeven", "Delta", "IV %", "Source"})
	for _, v := range rows {
		table.Append([]string{
			strconv.Itoa(v.Index),
			v.Ticker,
			fmt.Sprintf("%.2f", v.Strike),
			strconv.Itoa(v.DTE),
			fmt.Sprintf("%.2f", v.Premium),
			fmt.Sprintf("%.2f", v.PremiumYieldPct),
			fmt.Sprintf("%.4f", v.AssignmentScore),
			fmt.Sprintf("%.2f", v.ProbabilityOfProfitPct),
			fmt.Sprintf("%.2f", v.MoneynessPct),
			formatReturnOnRisk(v.ReturnOnRiskPct),
			fmt.Sprintf("%.2f", v.Breakeven),
			fmt.Sprintf("%.3f", v.Delta),
			fmt.Sprintf("%.1f", v.IVPct),
			string(v.Provenance),
		})
	}
	table.Render()
}

func formatReturnOnRisk(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func exportCSV(path string, views []models.CandidateView) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&views, file); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
