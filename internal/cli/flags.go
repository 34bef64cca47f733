package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand starts the local HTTP daemon.
type ServeCommand struct {
	Host     string `long:"host" description:"Override daemon host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`
	NoBackup bool   `long:"no-backup" description:"Disable the periodic backup"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows database statistics and whether the daemon is up.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// AddCommand records a visit by hand.
type AddCommand struct {
	URL      string `long:"url" description:"URL to record (required)"`
	Title    string `long:"title" description:"Page title"`
	BodyFile string `long:"body-file" description:"Path to file containing the page HTML"`
	Body     string `long:"body" description:"Inline page HTML"`
	Rating   int    `long:"rating" description:"Optional rating 1-5"`

	globals *GlobalFlags
	version string
}

// SearchCommand searches visits by keyword.
type SearchCommand struct {
	Limit int `long:"limit" description:"Maximum results (0 uses the configured default)"`

	globals *GlobalFlags
	version string
}

// ReportCommand prints the report for a recent period.
type ReportCommand struct {
	Days   int    `long:"days" description:"Period length in days (0 uses the configured default)"`
	Limit  int    `long:"limit" description:"Maximum visits (0 uses the configured default)"`
	Domain string `long:"domain" description:"Only URLs containing this text"`

	globals *GlobalFlags
	version string
}

// OpenCommand prints one visit with its stored content.
type OpenCommand struct {
	URL    string `long:"url" description:"Visit URL (required)"`
	Format string `long:"format" description:"Output format: full | raw | text | md | json" default:"full"`

	globals *GlobalFlags
	version string
}

// StatsCommand prints ledger totals and daily visit counts.
type StatsCommand struct {
	globals *GlobalFlags
	version string
}

// BlockCommand groups the blocklist subcommands.
type BlockCommand struct {
	Add    BlockAddCommand    `command:"add" description:"Block a URL, domain: pattern or wildcard"`
	Remove BlockRemoveCommand `command:"remove" description:"Remove a pattern"`
	Update BlockUpdateCommand `command:"update" description:"Change the reason of a pattern"`
	List   BlockListCommand   `command:"list" description:"List patterns in match order"`
	Check  BlockCheckCommand  `command:"check" description:"Check whether a URL is blocked"`
	Import BlockImportCommand `command:"import" description:"Add patterns from a JSON or YAML file"`
	Export BlockExportCommand `command:"export" description:"Write every pattern as JSON"`
}

type BlockAddCommand struct {
	Reason string `long:"reason" description:"Why the pattern is blocked"`
	Args   struct {
		Pattern string `positional-arg-name:"pattern" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
}

type BlockRemoveCommand struct {
	Args struct {
		Pattern string `positional-arg-name:"pattern" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
}

type BlockUpdateCommand struct {
	Reason string `long:"reason" description:"New reason (required)"`
	Args   struct {
		Pattern string `positional-arg-name:"pattern" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
}

type BlockListCommand struct {
	globals *GlobalFlags
}

type BlockCheckCommand struct {
	Args struct {
		URL string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
}

type BlockImportCommand struct {
	File   string `long:"file" description:"File with a list of patterns or {url, reason} entries (required)"`
	Reason string `long:"reason" description:"Reason for entries without one"`

	globals *GlobalFlags
}

type BlockExportCommand struct {
	File string `long:"file" description:"Write to file instead of stdout"`

	globals *GlobalFlags
}

// SessionCommand groups the viewing-session subcommands.
type SessionCommand struct {
	Start SessionStartCommand `command:"start" description:"Open a viewing session for a recorded URL"`
	End   SessionEndCommand   `command:"end" description:"Close a viewing session"`
	List  SessionListCommand  `command:"list" description:"List sessions of a URL"`
}

type SessionStartCommand struct {
	URL string `long:"url" description:"Visit URL (required)"`
	At  string `long:"at" description:"Start time (ISO-8601, default now)"`

	globals *GlobalFlags
}

type SessionEndCommand struct {
	ID string `long:"id" description:"Session ID (required)"`
	At string `long:"at" description:"End time (ISO-8601, default now)"`

	globals *GlobalFlags
}

type SessionListCommand struct {
	URL   string `long:"url" description:"Visit URL (required)"`
	Since string `long:"since" description:"Only sessions newer than duration (e.g., 7d, 24h, 2w)"`

	globals *GlobalFlags
}

// PurgeCommand deletes every visit, session and stored page.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader // nil means os.Stdin
}

// BackupCommand writes a snapshot of the database.
type BackupCommand struct {
	To string `long:"to" description:"Destination file (default: configured backup file)"`

	globals *GlobalFlags
	version string
}
