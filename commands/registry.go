package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Axidify/Terminality-V2-sub001/internal/game"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
)

// CommandGroup decides where help lists a command.
type CommandGroup string

const (
	GroupGeneral CommandGroup = "general"
	GroupNetwork CommandGroup = "network"
	GroupShell   CommandGroup = "shell"
	GroupMail    CommandGroup = "mail"
	// GroupHidden commands work but are left out of help.
	GroupHidden CommandGroup = "hidden"
)

// Definition describes a single command's metadata.
type Definition struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Group       CommandGroup
}

// Handler executes a command.
// Returning true indicates the connection should terminate.
type Handler func(*Context) bool

// Command couples metadata with the executable handler.
type Command struct {
	Definition
	Handler Handler
}

// Context provides the runtime data available to a command handler.
type Context struct {
	World   *game.World
	Player  *game.Player
	Raw     string
	Arg     string
	Args    []string
	Input   string
	Command *Command
}

// Desktop is the session the command runs against.
func (c *Context) Desktop() *game.Desktop {
	return c.Player.Desktop
}

// Render prints a command result to the player.
func (c *Context) Render(res game.Result) bool {
	c.Player.Send(res.Output...)
	return false
}

// Usagef prints the command's usage line.
func (c *Context) Usagef() bool {
	c.Player.Send(game.Warn("Usage: " + c.Command.Usage))
	return false
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Command)
	ordered    []*Command
)

// Define registers a new command using the provided definition and handler.
// It panics when metadata is incomplete or duplicates an existing command.
func Define(def Definition, handler Handler) *Command {
	if handler == nil {
		panic("commands: handler must not be nil")
	}
	if strings.TrimSpace(def.Name) == "" {
		panic("commands: command must have a name")
	}
	if def.Group == "" {
		def.Group = GroupGeneral
	}

	cmd := &Command{Definition: def, Handler: handler}

	registryMu.Lock()
	defer registryMu.Unlock()

	registerName := func(name string) {
		key := strings.ToLower(name)
		if _, exists := registry[key]; exists {
			panic(fmt.Sprintf("commands: duplicate registration for %q", name))
		}
		registry[key] = cmd
	}

	registerName(def.Name)
	for _, alias := range def.Aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		registerName(alias)
	}

	ordered = append(ordered, cmd)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	return cmd
}

// All returns the registered commands sorted by primary name.
func All() []*Command {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]*Command, len(ordered))
	copy(out, ordered)
	return out
}

// Find looks up a command by name or alias.
func Find(name string) (*Command, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cmd, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok
}

// findPrefix resolves an abbreviated command name when exactly one visible
// command starts with it.
func findPrefix(name string) (*Command, bool) {
	var (
		names []string
		cmds  []*Command
	)
	for _, cmd := range All() {
		if cmd.Group == GroupHidden {
			continue
		}
		names = append(names, cmd.Name)
		cmds = append(cmds, cmd)
	}
	idx, ok := game.UniqueMatch(name, names, false)
	if !ok {
		return nil, false
	}
	return cmds[idx], true
}

// Dispatch parses the input line, looks up the command, and executes it.
func Dispatch(world *game.World, player *game.Player, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := strings.ToLower(parts[0])

	cmd, ok := Find(name)
	if !ok {
		cmd, ok = findPrefix(name)
	}
	if !ok {
		metrics.RecordCommand(name, false)
		player.Send(game.Warn(fmt.Sprintf("%s: command not found. Type 'help'.", parts[0])))
		return false
	}
	metrics.RecordCommand(cmd.Name, true)

	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	ctx := &Context{
		World:   world,
		Player:  player,
		Raw:     line,
		Arg:     arg,
		Args:    parts[1:],
		Input:   parts[0],
		Command: cmd,
	}
	if player.Desktop == nil && cmd.Group != GroupGeneral {
		player.Send(game.Warn("No desktop session is open."))
		return false
	}
	return cmd.Handler(ctx)
}
