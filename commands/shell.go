package commands

import (
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/game"
)

var List = Define(Definition{
	Name:        "ls",
	Aliases:     []string{"dir"},
	Usage:       "ls [-a] [path]",
	Description: "list a directory on the connected host",
	Group:       GroupShell,
}, func(ctx *Context) bool {
	all := false
	path := ""
	for _, arg := range ctx.Args {
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "a") {
			all = true
			continue
		}
		if path == "" {
			path = arg
		}
	}
	return ctx.Render(ctx.Desktop().ListDir(path, all))
})

var ChangeDir = Define(Definition{
	Name:        "cd",
	Usage:       "cd [path]",
	Description: "change the working directory",
	Group:       GroupShell,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().ChangeDir(ctx.Arg))
})

var Cat = Define(Definition{
	Name:        "cat",
	Aliases:     []string{"read"},
	Usage:       "cat <file>",
	Description: "print a file",
	Group:       GroupShell,
}, func(ctx *Context) bool {
	if len(ctx.Args) == 0 {
		return ctx.Usagef()
	}
	return ctx.Render(ctx.Desktop().ReadFile(ctx.Args[0]))
})

var Remove = Define(Definition{
	Name:        "rm",
	Aliases:     []string{"del"},
	Usage:       "rm [-r] <path>",
	Description: "delete a file or, with -r, a directory",
	Group:       GroupShell,
}, func(ctx *Context) bool {
	recursive := false
	path := ""
	for _, arg := range ctx.Args {
		if arg == "-r" || arg == "-rf" || arg == "-R" {
			recursive = true
			continue
		}
		if path == "" {
			path = arg
		}
	}
	if path == "" {
		return ctx.Usagef()
	}
	return ctx.Render(ctx.Desktop().DeleteFile(path, recursive))
})

var Pwd = Define(Definition{
	Name:        "pwd",
	Usage:       "pwd",
	Description: "print the working directory",
	Group:       GroupShell,
}, func(ctx *Context) bool {
	host, cwd, ok := ctx.Desktop().Location()
	if !ok {
		ctx.Player.Send(game.Warn("pwd: not connected."))
		return false
	}
	ctx.Player.Send(game.HighlightHost(host) + ":" + game.HighlightPath(cwd))
	return false
})
