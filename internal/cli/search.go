package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/webwatch/internal/report"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	if strings.TrimSpace(strings.Join(args, " ")) == "" {
		return fmt.Errorf("search requires a query")
	}

	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a, args)
}

// executeWith runs the search against a provided app (for testing).
func (c *SearchCommand) executeWith(a *app, args []string) error {
	query := strings.Join(args, " ")

	limit := c.Limit
	if limit <= 0 {
		limit = a.cfg.Report.SearchLimit
	}

	res, err := a.reports.Search(context.Background(), query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(res)
	}
	return c.printHuman(res)
}

func (c *SearchCommand) printHuman(res *report.SearchResult) error {
	if res.Count == 0 {
		fmt.Printf("No results found for %q\n", res.Query)
		return nil
	}

	resultWord := "results"
	if res.Count == 1 {
		resultWord = "result"
	}
	fmt.Printf("Found %d %s for %q\n\n", res.Count, resultWord, res.Query)

	for i, v := range res.Results {
		title := v.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%d. %s \u2014 %s\n", i+1, title, report.DomainOf(v.URL))
		fmt.Printf("   %s\n", v.URL)
		fmt.Printf("   %s \u00b7 %s\n", v.Timestamp.Local().Format("2006-01-02 15:04"), report.FormatDuration(v.TotalTimeSpent))

		if i < len(res.Results)-1 {
			fmt.Println()
		}
	}

	return nil
}
