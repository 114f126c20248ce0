package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/telegraph"
)

func newExchangesCmd(flags *rootFlags) *cobra.Command {
	var (
		contactID uint
		limit     int
		summary   bool
		days      int
	)

	cmd := &cobra.Command{
		Use:     "exchanges",
		Aliases: []string{"log"},
		Short:   "Show recent exchanges or an action summary",
		Example: `  pio exchanges --contact 3 --limit 10
  pio exchanges --summary --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			log, err := telegraph.NewExchangeLog(a.db)
			if err != nil {
				return err
			}
			if summary {
				return printActionSummary(ctx, log, cmd.OutOrStdout(), time.Now().AddDate(0, 0, -days))
			}
			return printExchanges(ctx, log, cmd.OutOrStdout(), contactID, limit)
		},
	}

	cmd.Flags().UintVar(&contactID, "contact", 0, "only this contact")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of exchanges")
	cmd.Flags().BoolVar(&summary, "summary", false, "count executed actions instead of listing exchanges")
	cmd.Flags().IntVar(&days, "days", 7, "summary window in days")
	return cmd
}

func printExchanges(ctx context.Context, log *telegraph.ExchangeLog, out io.Writer, contactID uint, limit int) error {
	rows, err := log.Recent(ctx, contactID, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No exchanges.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tCONTACT\tCATEGORY\tACTION\tMS\tMESSAGE")
	for _, ex := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
			ex.CreatedAt.Format("01-02 15:04"), ex.ContactID, ex.Category, ex.ActionExecuted, ex.DurationMS, oneLine(ex.Inbound, 50))
	}
	return w.Flush()
}

func printActionSummary(ctx context.Context, log *telegraph.ExchangeLog, out io.Writer, since time.Time) error {
	counts, err := log.ActionCounts(ctx, since)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Actions since %s\n", since.Format("2006-01-02"))
	if len(counts) == 0 {
		fmt.Fprintln(out, "  (none)")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	var total int64
	for _, c := range counts {
		action := c.Action
		if action == "" {
			action = "(none)"
		}
		fmt.Fprintf(w, "  %s\t%d\n", action, c.Count)
		total += c.Count
	}
	fmt.Fprintf(w, "  total\t%d\n", total)
	return w.Flush()
}

// oneLine flattens s to a single line of at most n runes.
func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return string(r)
}
