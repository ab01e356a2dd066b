package main

import (
	"notify-backend/cmd/notify-cli/commands"
	"notify-backend/lib/serviceutil"
	"notify-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	commands.ExecuteContext(serviceutil.SignalContext())
}
