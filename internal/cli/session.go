package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/webwatch/internal/report"
	"github.com/runnerr0/webwatch/internal/session"
)

func (c *SessionStartCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for session start")
	}
	return withApp(c.globals, c.executeWith)
}

func (c *SessionStartCommand) executeWith(a *app) error {
	at, err := parseTimeFlag("at", c.At)
	if err != nil {
		return err
	}

	id, err := a.sessions.StartAt(context.Background(), c.URL, at)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]string{"session_id": id})
	}
	fmt.Println(id)
	return nil
}

func (c *SessionEndCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for session end")
	}
	return withApp(c.globals, c.executeWith)
}

func (c *SessionEndCommand) executeWith(a *app) error {
	at, err := parseTimeFlag("at", c.At)
	if err != nil {
		return err
	}

	s, err := a.sessions.End(context.Background(), c.ID, at)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(s)
	}
	fmt.Printf("Closed %s after %s\n", s.ID, report.FormatDuration(s.DurationSeconds))
	return nil
}

func (c *SessionListCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for session list")
	}
	return withApp(c.globals, c.executeWith)
}

func (c *SessionListCommand) executeWith(a *app) error {
	var tr session.TimeRange
	label := "all time"
	if c.Since != "" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		tr.Since = time.Now().Add(-d)
		label = "last " + formatDurationHuman(d)
	}

	sessions, err := a.sessions.SessionsFor(context.Background(), c.URL, tr)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Printf("No sessions for %s (%s)\n", c.URL, label)
		return nil
	}

	fmt.Printf("%d sessions for %s (%s)\n", len(sessions), c.URL, label)
	for _, s := range sessions {
		end := "open"
		if s.Closed() {
			end = report.FormatDuration(s.DurationSeconds)
		}
		fmt.Printf("  %s  %s  %s\n", s.StartTime.Local().Format("2006-01-02 15:04:05"), s.ID, end)
	}
	return nil
}
