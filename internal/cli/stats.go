package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/webwatch/internal/report"
)

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith prints ledger stats from a provided app (for testing).
func (c *StatsCommand) executeWith(a *app) error {
	stats, err := a.reports.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(stats)
	}

	fmt.Printf("Total visits:    %s\n", formatNumber(stats.TotalVisits))
	fmt.Printf("Unique domains:  %s\n", formatNumber(int64(stats.UniqueDomains)))

	if len(stats.DailyVisits) == 0 {
		return nil
	}

	var peak int64
	for _, d := range stats.DailyVisits {
		if d.Count > peak {
			peak = d.Count
		}
	}

	fmt.Println()
	fmt.Printf("Visits per day (last %d days):\n", report.StatsDays)
	for _, d := range stats.DailyVisits {
		bar := int(d.Count * 40 / peak)
		if bar == 0 {
			bar = 1
		}
		fmt.Printf("  %s %5d %s\n", d.Date, d.Count, strings.Repeat("#", bar))
	}
	return nil
}
