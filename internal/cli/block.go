package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/webwatch/internal/blocklist"
)

// withApp opens the app for a blocklist or session subcommand.
func withApp(globals *GlobalFlags, fn func(a *app) error) error {
	a, err := openApp(globals)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *BlockAddCommand) Execute(args []string) error {
	return withApp(c.globals, c.executeWith)
}

func (c *BlockAddCommand) executeWith(a *app) error {
	e, err := a.blocklist.Add(context.Background(), c.Args.Pattern, c.Reason)
	if err != nil {
		return fmt.Errorf("block %q: %w", c.Args.Pattern, err)
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(e)
	}
	fmt.Printf("Blocked %s (%s)\n", e.Pattern, e.Reason)
	return nil
}

func (c *BlockRemoveCommand) Execute(args []string) error {
	return withApp(c.globals, c.executeWith)
}

func (c *BlockRemoveCommand) executeWith(a *app) error {
	if err := a.blocklist.Remove(context.Background(), c.Args.Pattern); err != nil {
		return fmt.Errorf("unblock %q: %w", c.Args.Pattern, err)
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{"removed": c.Args.Pattern})
	}
	fmt.Printf("Unblocked %s\n", c.Args.Pattern)
	return nil
}

func (c *BlockUpdateCommand) Execute(args []string) error {
	if c.Reason == "" {
		return fmt.Errorf("--reason is required for block update")
	}
	return withApp(c.globals, c.executeWith)
}

func (c *BlockUpdateCommand) executeWith(a *app) error {
	e, err := a.blocklist.Update(context.Background(), c.Args.Pattern, c.Reason)
	if err != nil {
		return fmt.Errorf("update %q: %w", c.Args.Pattern, err)
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(e)
	}
	fmt.Printf("Updated %s (%s)\n", e.Pattern, e.Reason)
	return nil
}

func (c *BlockListCommand) Execute(args []string) error {
	return withApp(c.globals, c.executeWith)
}

func (c *BlockListCommand) executeWith(a *app) error {
	entries := a.blocklist.Export()
	if c.globals != nil && c.globals.JSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("Blocklist is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-45s %s\n", e.Pattern, e.Reason)
	}
	return nil
}

func (c *BlockCheckCommand) Execute(args []string) error {
	return withApp(c.globals, c.executeWith)
}

func (c *BlockCheckCommand) executeWith(a *app) error {
	v := a.blocklist.Check(c.Args.URL)
	if c.globals != nil && c.globals.JSON {
		return printJSON(v)
	}
	if !v.Blocked {
		fmt.Printf("%s is not blocked\n", c.Args.URL)
		return nil
	}
	fmt.Printf("%s is blocked by %s (%s)\n", c.Args.URL, v.Pattern, v.Reason)
	return nil
}

func (c *BlockImportCommand) Execute(args []string) error {
	if c.File == "" {
		return fmt.Errorf("--file is required for block import")
	}
	return withApp(c.globals, c.executeWith)
}

func (c *BlockImportCommand) executeWith(a *app) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	items, err := parseImport(data)
	if err != nil {
		return fmt.Errorf("parsing import file: %w", err)
	}
	for i := range items {
		if items[i].Reason == "" {
			items[i].Reason = c.Reason
		}
	}

	res, err := a.blocklist.BulkAdd(context.Background(), items)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(res)
	}
	fmt.Printf("Added %d, skipped %d", len(res.Added), len(res.Skipped))
	if len(res.Invalid) > 0 {
		fmt.Printf(", invalid %d: %s", len(res.Invalid), strings.Join(res.Invalid, ", "))
	}
	fmt.Println()
	return nil
}

// parseImport reads a YAML (or JSON) list whose elements are either a
// pattern string or a {url, reason} mapping. A document with a top-level
// "urls" key is accepted too.
func parseImport(data []byte) ([]blocklist.Item, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return []blocklist.Item{}, nil
	}

	list := doc.Content[0]
	if list.Kind == yaml.MappingNode {
		var wrapped struct {
			URLs yaml.Node `yaml:"urls"`
		}
		if err := list.Decode(&wrapped); err != nil {
			return nil, err
		}
		list = &wrapped.URLs
	}
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list of patterns")
	}

	items := make([]blocklist.Item, 0, len(list.Content))
	for _, n := range list.Content {
		var it blocklist.Item
		switch n.Kind {
		case yaml.ScalarNode:
			it.Pattern = n.Value
		case yaml.MappingNode:
			if err := n.Decode(&it); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("line %d: entries must be strings or {url, reason} mappings", n.Line)
		}
		items = append(items, it)
	}
	return items, nil
}

func (c *BlockExportCommand) Execute(args []string) error {
	return withApp(c.globals, c.executeWith)
}

func (c *BlockExportCommand) executeWith(a *app) error {
	entries := a.blocklist.Export()
	if c.File == "" {
		return printJSON(entries)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blocklist: %w", err)
	}
	if err := os.WriteFile(c.File, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Printf("Exported %d patterns to %s\n", len(entries), c.File)
	return nil
}
