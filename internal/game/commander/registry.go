package commander

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCommand is returned by Dispatch for input matching no command.
var ErrUnknownCommand = errors.New("unknown command")

// Command is an operator command reachable by name, alias or hotkey.
type Command struct {
	Name        string
	Aliases     []string
	Hotkey      string
	Description string
	// Destructive commands ask the Confirmer first when confirmation is enabled.
	Destructive bool
	// Run is a Commander method expression such as (*Commander).NextTurn.
	Run         func(*Commander, context.Context) bool
}

// Registry maps command names, aliases and hotkeys to Commands.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
	hotkeys  map[string]string   // hotkey → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name, alias or hotkey,
// and every command must have a Run function.
// Postcondition: Returns a Registry or an error on collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
		hotkeys:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Run == nil {
			return nil, fmt.Errorf("command %q has no Run function", cmd.Name)
		}
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}

		if cmd.Hotkey != "" {
			if existing, exists := r.hotkeys[cmd.Hotkey]; exists {
				return nil, fmt.Errorf("duplicate hotkey %q: used by %q and %q", cmd.Hotkey, existing, cmd.Name)
			}
			r.hotkeys[cmd.Hotkey] = cmd.Name
		}
	}

	return r, nil
}

// BuiltinCommands returns the encounter commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "start", Aliases: []string{"begin"}, Hotkey: "alt+r", Description: "Roll initiative and start the encounter",
			Run: (*Commander).StartEncounter},
		{Name: "next", Aliases: []string{"n"}, Hotkey: "n", Description: "Advance to the next turn, starting the encounter if needed",
			Run: (*Commander).NextTurn},
		{Name: "previous", Aliases: []string{"prev"}, Hotkey: "alt+n", Description: "Step back one turn",
			Run: (*Commander).PreviousTurn},
		{Name: "end", Hotkey: "alt+e", Description: "End the encounter, keeping combatants",
			Run: (*Commander).EndEncounter},
		{Name: "reroll", Aliases: []string{"reroll-initiative"}, Hotkey: "alt+i", Description: "Reroll initiative for every combatant",
			Run: (*Commander).RerollInitiative},
		{Name: "clean", Hotkey: "alt+del", Description: "Remove combatants that are not persistent characters", Destructive: true,
			Run: (*Commander).CleanEncounter},
		{Name: "clear", Hotkey: "alt+shift+del", Description: "Remove every combatant and end the encounter", Destructive: true,
			Run: (*Commander).ClearEncounter},
		{Name: "restore-pc-hp", Aliases: []string{"restore"}, Hotkey: "alt+h", Description: "Restore all player characters to full HP", Destructive: true,
			Run: (*Commander).RestoreAllPlayerCharacterHP},
	}
}

// DefaultRegistry creates a Registry with all built-in commands.
//
// Postcondition: Returns a Registry with all built-in commands registered.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name, alias or hotkey, in that order.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Command, bool) {
	if cmd, ok := r.commands[input]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	if canonical, ok := r.hotkeys[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands ordered by name.
func (r *Registry) Commands() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Dispatch runs the command matching input.
//
// Postcondition: Returns whether the command changed the encounter, or an
// error wrapping ErrUnknownCommand.
func (c *Commander) Dispatch(ctx context.Context, input string) (bool, error) {
	cmd, ok := c.registry.Resolve(input)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, input)
	}
	return cmd.Run(c, ctx), nil
}
