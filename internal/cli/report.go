package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/webwatch/internal/report"
)

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	if c.Days < 0 || c.Limit < 0 {
		return fmt.Errorf("--days and --limit must not be negative")
	}

	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith builds the report from a provided app (for testing).
func (c *ReportCommand) executeWith(a *app) error {
	days := c.Days
	if days == 0 {
		days = a.cfg.Report.DefaultDays
	}
	limit := c.Limit
	if limit == 0 {
		limit = a.cfg.Report.DefaultLimit
	}

	rep, err := a.reports.Report(context.Background(), report.Query{
		Since:  time.Now().AddDate(0, 0, -days),
		Limit:  limit,
		Domain: c.Domain,
	})
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(rep)
	}

	fmt.Printf("Report for the last %s (%s to %s)\n",
		formatDurationHuman(time.Duration(days)*24*time.Hour),
		rep.Period.Start.Local().Format("2006-01-02"),
		rep.Period.End.Local().Format("2006-01-02"))
	fmt.Printf("Visits:        %s\n", formatNumber(rep.TotalVisits))

	if len(rep.DomainStatistics) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range rep.DomainStatistics {
			fmt.Printf("  %-30s %5d  %s\n", d.Domain, d.Count, d.TimeSpentFormatted)
		}
	}

	if len(rep.Visits) > 0 {
		fmt.Println()
		fmt.Println("Visits:")
		for _, v := range rep.Visits {
			fmt.Printf("  %s  %-12s %s\n", v.Timestamp.Local().Format("2006-01-02 15:04"), v.TimeSpentFormatted, v.URL)
			if v.Title != "" {
				fmt.Printf("  %16s %-12s %s\n", "", "", v.Title)
			}
		}
	}

	return nil
}
