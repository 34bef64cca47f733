package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/runnerr0/webwatch/internal/recorder"
	"github.com/runnerr0/webwatch/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for add command")
	}

	a, err := openApp(c.globals)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith runs the add logic against a provided app (used by tests).
func (c *AddCommand) executeWith(a *app) error {
	// Validate URL format
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	// Body and body-file are mutually exclusive
	if c.Body != "" && c.BodyFile != "" {
		return fmt.Errorf("--body and --body-file are mutually exclusive")
	}

	// Read body from file if specified
	body := c.Body
	if c.BodyFile != "" {
		data, err := os.ReadFile(c.BodyFile)
		if err != nil {
			return fmt.Errorf("reading body file: %w", err)
		}
		body = string(data)
	}

	var rating *int
	if c.Rating != 0 {
		r := c.Rating
		rating = &r
	}

	// Manual adds go through the blocklist but never skip localhost.
	rec := recorder.New(a.ledger, a.blocklist, recorder.Options{Logger: a.log})
	defer rec.Close(context.Background())

	out, err := rec.Record(context.Background(), storage.VisitInput{
		URL:    c.URL,
		Title:  c.Title,
		Body:   body,
		Rating: rating,
	})
	if err != nil {
		return fmt.Errorf("storing visit: %w", err)
	}
	if out.Status == recorder.StatusBlocked {
		return fmt.Errorf("url %q is blocked: %s", c.URL, out.Message)
	}

	v := out.Visit
	if c.globals != nil && c.globals.JSON {
		return printJSON(v)
	}

	hasBody := "no"
	if body != "" {
		hasBody = "yes"
	}

	fmt.Printf("Recorded %s (%s)\n", v.URL, v.Timestamp.Format(time.RFC3339))
	fmt.Printf("  Title: %s\n", v.Title)
	fmt.Printf("  Body: %s\n", hasBody)
	fmt.Printf("  Content: %s\n", v.ContentHash)
	fmt.Printf("  Links: %d\n", len(v.Links))

	return nil
}
