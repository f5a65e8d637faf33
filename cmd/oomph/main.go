// oomph keeps recurring household chores: templates with cron-style
// schedules, the daily instances materialized from them, and a ledger of
// completions.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/chantastic/oomph/internal/chore"
	"github.com/chantastic/oomph/internal/clock"
	"github.com/chantastic/oomph/internal/config"
	"github.com/chantastic/oomph/internal/database"
	"github.com/chantastic/oomph/internal/logging"
)

// app is the state every subcommand runs against.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock
	out    io.Writer
	json   bool

	db  *sql.DB
	svc *chore.Service
}

type command struct {
	summary string
	// noDB commands manage the database file themselves.
	noDB bool
	run  func(a *app, args []string) error
}

var commands = map[string]command{
	"serve":       {summary: "run the daily materialization scheduler", run: runServe},
	"materialize": {summary: "materialize the chores due on a day", run: runMaterialize},
	"assignee":    {summary: "add, list, rename or remove assignees", run: runAssignee},
	"template":    {summary: "add, edit, list or remove chore templates", run: runTemplate},
	"jit":         {summary: "add or remove a one-off chore", run: runJit},
	"toggle":      {summary: "toggle completion of an instance", run: runToggle},
	"day":         {summary: "show an assignee's chores for a day", run: runDay},
	"week":        {summary: "show an assignee's week", run: runWeek},
	"completions": {summary: "list completion events in a date range", run: runCompletions},
	"runs":        {summary: "list recent materialization runs", run: runRuns},
	"backup":      {summary: "write an encrypted backup, or list backups", run: runBackup},
	"restore":     {summary: "restore the database from a backup", noDB: true, run: runRestore},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		configPath string
		dbPath     string
		logLevel   string
		jsonOut    bool
	)
	flags := pflag.NewFlagSet("oomph", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $OOMPH_CONFIG)")
	flags.StringVar(&dbPath, "db", "", "database path (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.BoolVar(&jsonOut, "json", false, "print results as JSON")
	flags.Usage = func() { printUsage(out, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(out, flags)
		return errors.New("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	a := &app{
		cfg:    cfg,
		logger: logging.Setup(cfg.Log.Level, cfg.Log.Format, nil),
		clock:  clock.Real(),
		out:    out,
		json:   jsonOut,
	}
	if !cmd.noDB {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		a.db = db
		a.svc = chore.NewService(chore.SQLStores(db), cfg.Location(), a.logger)
	}
	return cmd.run(a, rest[1:])
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: oomph [flags] <command> [args]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprint(w, flags.FlagUsages())
}

// subcommand builds the flag set for "oomph <name>".
func subcommand(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("oomph "+name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("usage: oomph "+format, args...)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
