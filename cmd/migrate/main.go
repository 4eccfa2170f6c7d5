// Package main applies the tracker's schema migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cory-johannsen/tracker/internal/config"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and TRACKER_ environment")
	migrationsDir := flag.String("migrations", "migrations", "directory of migration files")
	command := flag.String("command", "up", "up, down, version, or force")
	steps := flag.Int("steps", 0, "number of steps for up/down (0 = all)")
	forceVersion := flag.Int("version", -1, "version recorded by force, clearing the dirty flag")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	m, err := migrate.New("file://"+*migrationsDir, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("creating migrator: %v", err)
	}
	defer m.Close()

	switch *command {
	case "up":
		err = step(m, *steps, m.Up)
	case "down":
		err = step(m, -*steps, m.Down)
	case "version":
	case "force":
		if *forceVersion < 0 {
			log.Fatal("force requires -version")
		}
		err = m.Force(*forceVersion)
	default:
		log.Fatalf("invalid command %q: must be up, down, version, or force", *command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("%s failed: %v", *command, err)
	}

	version, dirty, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		fmt.Fprintf(os.Stdout, "no migrations applied [%s]\n", time.Since(start))
		return
	}
	if verr != nil {
		log.Fatalf("reading version: %v", verr)
	}

	switch {
	case *command == "version":
		fmt.Fprintf(os.Stdout, "version=%d dirty=%v\n", version, dirty)
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Fprintf(os.Stdout, "no changes (version=%d dirty=%v) [%s]\n", version, dirty, time.Since(start))
	default:
		fmt.Fprintf(os.Stdout, "%s complete: version=%d dirty=%v [%s]\n", *command, version, dirty, time.Since(start))
	}
}

// step runs n relative steps, or all when n is zero.
func step(m *migrate.Migrate, n int, all func() error) error {
	if n != 0 {
		return m.Steps(n)
	}
	return all()
}
