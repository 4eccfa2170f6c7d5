// Package main imports YAML stat blocks into the persistent character library.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cory-johannsen/tracker/internal/config"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
	"github.com/cory-johannsen/tracker/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	sourceDir := flag.String("source", "", "directory of stat block YAML files")
	all := flag.Bool("all", false, "import every stat block, not only player characters")
	dryRun := flag.Bool("dry-run", false, "list what would be imported without writing")
	flag.Parse()

	if *sourceDir == "" {
		fmt.Fprintln(os.Stderr, "usage: import-characters -source <dir> [-config <file>] [-all] [-dry-run]")
		os.Exit(1)
	}

	start := time.Now()
	blocks, err := statblock.LoadDir(*sourceDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !*all {
		blocks = playerBlocks(blocks)
	}

	if *dryRun {
		for _, sb := range blocks {
			fmt.Printf("%s\t%s\n", sb.ID, sb.Name)
		}
		fmt.Printf("%d stat blocks would be imported\n", len(blocks))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	inserted, skipped, err := persistent.ImportStatBlocks(ctx, postgres.NewPersistentCharacterRepository(pool.DB()), blocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v (inserted %d before failing)\n", err, inserted)
		os.Exit(1)
	}
	fmt.Printf("import complete in %s: %d inserted, %d already present\n",
		time.Since(start).Round(time.Millisecond), inserted, skipped)
}

func playerBlocks(blocks []statblock.StatBlock) []statblock.StatBlock {
	out := blocks[:0]
	for _, sb := range blocks {
		if sb.IsPlayerCharacter() {
			out = append(out, sb)
		}
	}
	return out
}
