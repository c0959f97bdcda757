package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/migrations"
	"go.uber.org/zap"
)

// schema is the part of migration.Migrator the commands drive
type schema interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
}

type command struct {
	usage string
	help  string
	nargs int
	run   func(s schema, args []string, out io.Writer) error
}

var commands = map[string]command{
	"up": {usage: "up", help: "Apply all pending migrations",
		run: func(s schema, _ []string, _ io.Writer) error { return s.Up() }},
	"down": {usage: "down", help: "Roll back all migrations",
		run: func(s schema, _ []string, _ io.Writer) error { return s.Down() }},
	"step": {usage: "step <n>", help: "Apply n migrations (negative rolls back)", nargs: 1,
		run: func(s schema, args []string, _ io.Writer) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return s.Steps(n)
		}},
	"version": {usage: "version", help: "Show the applied schema version",
		run: func(s schema, _ []string, out io.Writer) error {
			v, dirty, err := s.Version()
			if err != nil {
				return err
			}
			if v == 0 {
				fmt.Fprintln(out, "schema: no migrations applied")
				return nil
			}
			fmt.Fprintf(out, "schema: version %d (dirty=%t)\n", v, dirty)
			return nil
		}},
	"force": {usage: "force <version>", help: "Mark a version as applied after a failed run", nargs: 1,
		run: func(s schema, args []string, _ io.Writer) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return s.Force(v)
		}},
}

var errUsage = errors.New("usage")

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	open := func(ctx context.Context) (schema, error) {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return bootstrap.OpenMigrator(ctx, &cfg.Database, log)
	}

	if err := run(context.Background(), flag.Args(), os.Stdout, open, log); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		} else {
			log.Error("Migration command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

// run dispatches one command. list needs no database, so open is only called
// for the commands in the table.
func run(ctx context.Context, args []string, out io.Writer, open func(context.Context) (schema, error), log *zap.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	name, rest := args[0], args[1:]

	if name == "list" {
		names, err := migration.ListMigrations(migrations.FS)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if len(rest) < cmd.nargs {
		return fmt.Errorf("%w: migrate %s", errUsage, cmd.usage)
	}

	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	log.Info("Running schema command", zap.String("command", name))
	return cmd.run(s, rest, out)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Invoicing schema migrations\n\nUsage:\n  migrate [-log-level level] <command> [argument]\n\nCommands:")
	fmt.Fprintf(w, "  %-18s %s\n", "list", "List embedded migrations (no database needed)")
	for _, name := range []string{"up", "down", "step", "version", "force"} {
		c := commands[name]
		fmt.Fprintf(w, "  %-18s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(w, "\nDatabase settings come from config.toml, .env and INVOICING_DATABASE_* variables.")
}
