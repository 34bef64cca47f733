package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve   *ServeCommand
	Status  *StatusCommand
	Add     *AddCommand
	Search  *SearchCommand
	Report  *ReportCommand
	Open    *OpenCommand
	Stats   *StatsCommand
	Block   *BlockCommand
	Session *SessionCommand
	Purge   *PurgeCommand
	Backup  *BackupCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "webwatch"
	parser.LongDescription = "Local web visit ledger: records pages you read, tracks time spent, and reports on it."

	cmds := &commands{
		Serve:   &ServeCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Add:     &AddCommand{globals: &globals, version: version},
		Search:  &SearchCommand{globals: &globals, version: version},
		Report:  &ReportCommand{globals: &globals, version: version},
		Open:    &OpenCommand{globals: &globals, version: version},
		Stats:   &StatsCommand{globals: &globals, version: version},
		Block:   &BlockCommand{},
		Session: &SessionCommand{},
		Purge:   &PurgeCommand{globals: &globals, version: version},
		Backup:  &BackupCommand{globals: &globals, version: version},
	}
	cmds.Block.Add.globals = &globals
	cmds.Block.Remove.globals = &globals
	cmds.Block.Update.globals = &globals
	cmds.Block.List.globals = &globals
	cmds.Block.Check.globals = &globals
	cmds.Block.Import.globals = &globals
	cmds.Block.Export.globals = &globals
	cmds.Session.Start.globals = &globals
	cmds.Session.End.globals = &globals
	cmds.Session.List.globals = &globals

	parser.AddCommand("serve", "Start the webwatch daemon", "Start the local HTTP service the browser extension reports to.", cmds.Serve)
	parser.AddCommand("status", "Show database statistics", "Show database statistics, blocklist size and whether the daemon is running.", cmds.Status)
	parser.AddCommand("add", "Record a visit by hand", "Record a URL with optional title and page HTML, as the extension would.", cmds.Add)
	parser.AddCommand("search", "Search recorded visits", "Search URL, title, extracted text and stored content for a keyword.", cmds.Search)
	parser.AddCommand("report", "Report on a recent period", "Show visits, time spent and top domains for the last N days.", cmds.Report)
	parser.AddCommand("open", "Print a visit and its content", "Print one visit with its stored page content.", cmds.Open)
	parser.AddCommand("stats", "Show visit statistics", "Show total visits, unique domains and visits per day for the last 30 days.", cmds.Stats)
	parser.AddCommand("block", "Manage the blocklist", "Add, remove, update, list, check, import and export blocklist patterns.", cmds.Block)
	parser.AddCommand("session", "Manage viewing sessions", "Start, end and list viewing sessions.", cmds.Session)
	parser.AddCommand("purge", "Delete ALL recorded data", "Delete every visit, session and stored page. The blocklist is kept.", cmds.Purge)
	parser.AddCommand("backup", "Snapshot the database", "Write a consistent copy of the database to a file.", cmds.Backup)

	return parser, &globals, cmds
}

// Run is the main entry point for the webwatch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("webwatch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
