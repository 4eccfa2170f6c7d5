package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// ImportStatBlocks adds one character per stat block to store. A stat block
// with an ID keeps it, so re-importing the same files skips entries already
// present.
//
// Postcondition: Returns the number of characters inserted and skipped.
func ImportStatBlocks(ctx context.Context, store Store, blocks []statblock.StatBlock) (inserted, skipped int, err error) {
	for _, sb := range blocks {
		c := Initialize(sb)
		if sb.ID != "" {
			c.ID = sb.ID
		}
		err := store.AddNewPersistentCharacter(ctx, c)
		if errors.Is(err, ErrExists) {
			skipped++
			continue
		}
		if err != nil {
			return inserted, skipped, fmt.Errorf("importing %q: %w", sb.Name, err)
		}
		inserted++
	}
	return inserted, skipped, nil
}
