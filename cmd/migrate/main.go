package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/northlink/link-importer/internal/config"
)

const migrationsPath = "file://migrations"

const usage = "Usage: migrate <up|down> [steps]"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}

	direction := args[0]
	steps := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			fmt.Fprintf(os.Stderr, "Invalid step count %q\n", args[1])
			return 1
		}
		steps = n
	}

	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	m, err := migrate.New(migrationsPath, cfg.Database.MigrateURL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open migrations: %v\n", err)
		return 1
	}
	defer func() { _, _ = m.Close() }()

	if err := apply(m, direction, steps); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", direction, err)
		return 1
	}

	fmt.Printf("Migration %s completed\n", direction)
	return 0
}

// apply runs the requested migration. A zero step count means all the way.
func apply(m *migrate.Migrate, direction string, steps int) error {
	var err error
	switch {
	case direction == "up" && steps == 0:
		err = m.Up()
	case direction == "up":
		err = m.Steps(steps)
	case direction == "down" && steps == 0:
		err = m.Down()
	case direction == "down":
		err = m.Steps(-steps)
	default:
		return fmt.Errorf("unknown direction %q (%s)", direction, usage)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to apply")
		return nil
	}
	return err
}
