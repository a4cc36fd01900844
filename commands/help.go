package commands

import (
	"fmt"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/game"
)

var helpSections = []struct {
	group CommandGroup
	title string
}{
	{GroupNetwork, "Network"},
	{GroupShell, "Remote shell"},
	{GroupMail, "Mail"},
	{GroupGeneral, "General"},
}

var Help = Define(Definition{
	Name:        "help",
	Aliases:     []string{"?"},
	Usage:       "help [command]",
	Description: "show this message",
}, func(ctx *Context) bool {
	if len(ctx.Args) > 0 {
		cmd, ok := Find(ctx.Args[0])
		if !ok || cmd.Group == GroupHidden {
			ctx.Player.Send(game.Warn("No help for " + ctx.Args[0] + "."))
			return false
		}
		ctx.Player.Send(game.Style(cmd.Usage, game.AnsiBold), "  "+cmd.Description)
		if len(cmd.Aliases) > 0 {
			ctx.Player.Send("  aliases: " + strings.Join(cmd.Aliases, ", "))
		}
		return false
	}
	var lines []string
	for _, section := range helpSections {
		lines = append(lines, helpMessage(section.title, commandsForGroup(section.group))...)
	}
	ctx.Player.Send(lines...)
	return false
})

func helpMessage(title string, commands []*Command) []string {
	if len(commands) == 0 {
		return nil
	}
	lines := []string{game.Style(title, game.AnsiBold, game.AnsiUnderline)}
	for _, cmd := range commands {
		usage := cmd.Usage
		if strings.TrimSpace(usage) == "" {
			usage = cmd.Name
		}
		lines = append(lines, fmt.Sprintf("  %-34s %s", usage, cmd.Description))
	}
	return lines
}

func commandsForGroup(group CommandGroup) []*Command {
	all := All()
	filtered := make([]*Command, 0, len(all))
	for _, cmd := range all {
		if cmd.Group == group {
			filtered = append(filtered, cmd)
		}
	}
	return filtered
}
