package commands

import (
	"strconv"
	"strings"
)

var Scan = Define(Definition{
	Name:        "scan",
	Aliases:     []string{"nmap"},
	Usage:       "scan [-d] <host>",
	Description: "probe a host for open ports (-d shows door status)",
	Group:       GroupNetwork,
}, func(ctx *Context) bool {
	deep := false
	var target string
	for _, arg := range ctx.Args {
		switch strings.ToLower(arg) {
		case "-d", "--deep":
			deep = true
		default:
			if target == "" {
				target = arg
			}
		}
	}
	if target == "" {
		return ctx.Usagef()
	}
	return ctx.Render(ctx.Desktop().Scan(target, deep))
})

var Connect = Define(Definition{
	Name:        "connect",
	Aliases:     []string{"ssh"},
	Usage:       "connect <host> [port] [password]",
	Description: "open a shell on a remote host",
	Group:       GroupNetwork,
}, func(ctx *Context) bool {
	if len(ctx.Args) == 0 {
		return ctx.Usagef()
	}
	target, rest := ctx.Args[0], ctx.Args[1:]
	port := 0
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil && n > 0 {
			port = n
			rest = rest[1:]
		}
	}
	password := strings.Join(rest, " ")
	return ctx.Render(ctx.Desktop().Connect(target, port, password))
})

var Bruteforce = Define(Definition{
	Name:        "bruteforce",
	Aliases:     []string{"crack"},
	Usage:       "bruteforce <host>",
	Description: "hammer a host's weak spots until one gives",
	Group:       GroupNetwork,
}, func(ctx *Context) bool {
	if len(ctx.Args) == 0 {
		return ctx.Usagef()
	}
	return ctx.Render(ctx.Desktop().Bruteforce(ctx.Args[0]))
})

var Disconnect = Define(Definition{
	Name:        "disconnect",
	Aliases:     []string{"exit", "logout"},
	Usage:       "disconnect",
	Description: "close the remote shell",
	Group:       GroupNetwork,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().Disconnect())
})

var Trace = Define(Definition{
	Name:        "trace",
	Usage:       "trace",
	Description: "show how close each system is to tracing you",
	Group:       GroupNetwork,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().TraceReport())
})
