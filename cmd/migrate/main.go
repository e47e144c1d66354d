// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate [--direction up|down].
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"tenant-rollups/backend/internal/config"
	"tenant-rollups/backend/internal/db/migrate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	direction := flags.StringP("direction", "d", "up", "migration direction: up or down")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		return err
	}
	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		return err
	}
	return migrate.Run(dsn, dir)
}
