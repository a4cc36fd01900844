package commands

import (
	"strconv"
)

var Inbox = Define(Definition{
	Name:        "inbox",
	Aliases:     []string{"mail"},
	Usage:       "inbox",
	Description: "list your messages",
	Group:       GroupMail,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().Inbox())
})

var Open = Define(Definition{
	Name:        "open",
	Aliases:     []string{"readmail"},
	Usage:       "open <number>",
	Description: "read a message from your inbox",
	Group:       GroupMail,
}, func(ctx *Context) bool {
	if len(ctx.Args) == 0 {
		return ctx.Usagef()
	}
	index, err := strconv.Atoi(ctx.Args[0])
	if err != nil {
		return ctx.Usagef()
	}
	return ctx.Render(ctx.Desktop().Open(index))
})
