package api

import (
	"context"
)

type confirmationKey struct{}

// confirmation is the per-request answer to destructive-command prompts.
type confirmation struct {
	confirmed bool
	prompt    string
}

func withConfirmation(ctx context.Context, confirmed bool) (context.Context, *confirmation) {
	c := &confirmation{confirmed: confirmed}
	return context.WithValue(ctx, confirmationKey{}, c), c
}

// RequestConfirmer answers prompts from the confirm flag of the HTTP request
// that issued the command. Commands issued outside a request are declined.
type RequestConfirmer struct{}

// Confirm implements commander.Confirmer.
func (RequestConfirmer) Confirm(ctx context.Context, prompt string) bool {
	c, ok := ctx.Value(confirmationKey{}).(*confirmation)
	if !ok {
		return false
	}
	c.prompt = prompt
	return c.confirmed
}
