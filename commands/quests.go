package commands

var Quests = Define(Definition{
	Name:        "quests",
	Aliases:     []string{"quest", "jobs"},
	Usage:       "quests",
	Description: "review active and finished jobs",
	Group:       GroupMail,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().QuestLog())
})

var Flag = Define(Definition{
	Name:        "flag",
	Usage:       "flag <name>",
	Description: "set a story flag",
	Group:       GroupHidden,
}, func(ctx *Context) bool {
	return ctx.Render(ctx.Desktop().SetFlag(ctx.Arg))
})
