package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/stockroom/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	dsnEnv         = "STOCKROOM_POSTGRES_DSN"
)

var errDSNRequired = errors.New(dsnEnv + " (or -dsn) is required")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fail("%v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stdout)
	direction := flags.String("direction", "up", "migration direction: up|down|status")
	steps := flags.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsn := flags.String("dsn", "", "PostgreSQL DSN (fallback: "+dsnEnv+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	mode := strings.ToLower(strings.TrimSpace(*direction))
	if mode != "up" && mode != "down" && mode != "status" {
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", *direction)
	}

	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(getenv(dsnEnv))
	}
	if target == "" {
		return errDSNRequired
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	if mode != "status" {
		if err := store.Migrate(ctx, postgres.MigrationDirection(mode), *steps); err != nil {
			return fmt.Errorf("migrate %s failed: %w", mode, err)
		}
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "migrate %s ok: version=%d applied=%d pending=%d\n",
		mode, state.Version, state.Applied, state.Pending())
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
