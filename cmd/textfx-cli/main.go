package main

import (
	"textfx-backend/cmd/textfx-cli/commands"
	"textfx-backend/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
