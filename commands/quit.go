package commands

var Quit = Define(Definition{
	Name:        "quit",
	Aliases:     []string{"q", "logoff"},
	Usage:       "quit",
	Description: "close the terminal",
}, func(ctx *Context) bool {
	if ctx.Player.Desktop != nil {
		if _, _, connected := ctx.Player.Desktop.Location(); connected {
			ctx.Render(ctx.Player.Desktop.Disconnect())
		}
	}
	ctx.Player.Send("Goodbye.")
	return true
})
