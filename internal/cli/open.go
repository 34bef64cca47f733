package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/webwatch/internal/report"
)

// Execute implements the go-flags Commander interface for OpenCommand.
func (c *OpenCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for open command")
	}

	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith prints the visit from a provided app (for testing).
func (c *OpenCommand) executeWith(a *app) error {
	d, err := a.reports.VisitDetail(context.Background(), c.URL, true)
	if err != nil {
		return fmt.Errorf("visit not found: %s: %w", c.URL, err)
	}

	// JSON output (--json global flag)
	if c.globals != nil && c.globals.JSON {
		return printJSON(d)
	}

	switch c.Format {
	case "raw":
		printBody(d.Content)
	case "text":
		printBody(d.TextExtract)
	case "json":
		return printJSON(d)
	case "md":
		c.outputMarkdown(d)
	case "full", "":
		c.outputFull(d)
	default:
		return fmt.Errorf("unknown format %q (use full, raw, text, md or json)", c.Format)
	}

	return nil
}

func printBody(s string) {
	if s == "" {
		fmt.Println("No content captured")
		return
	}
	fmt.Println(s)
}

func (c *OpenCommand) outputFull(d *report.Detail) {
	fmt.Println(d.URL)
	fmt.Printf("Title:     %s\n", d.Title)
	fmt.Printf("Domain:    %s\n", report.DomainOf(d.URL))
	fmt.Printf("Seen:      %s\n", d.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Time:      %s\n", d.TimeSpentFormatted)
	fmt.Printf("Content:   %s\n", d.ContentHash)
	if d.Rating != nil {
		fmt.Printf("Rating:    %d/5\n", *d.Rating)
	}
	if d.Summary != "" {
		fmt.Printf("Summary:   %s\n", d.Summary)
	}
	fmt.Printf("Links:     %d\n", len(d.Links))
	fmt.Println()
	fmt.Println("--- Text ---")
	printBody(d.TextExtract)
}

func (c *OpenCommand) outputMarkdown(d *report.Detail) {
	fmt.Println("---")
	fmt.Printf("title: %s\n", d.Title)
	fmt.Printf("url: %s\n", d.URL)
	fmt.Printf("domain: %s\n", report.DomainOf(d.URL))
	fmt.Printf("seen: %s\n", d.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Printf("time_spent: %s\n", d.TimeSpentFormatted)
	fmt.Printf("content_hash: %s\n", d.ContentHash)
	fmt.Println("---")
	fmt.Println()
	printBody(d.TextExtract)
	if len(d.Links) > 0 {
		fmt.Println()
		fmt.Println("## Links")
		for _, l := range d.Links {
			fmt.Printf("- [%s](%s)\n", l.Description, l.URL)
		}
	}
}
