package main

import (
	"testudot/cmd/testudot/commands"
	"testudot/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
