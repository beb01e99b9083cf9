package main

import (
	"context"
	"log/slog"

	"suseapi/cmd/suse-cli/commands"
	"suseapi/lib/telemetry"
)

func main() {
	ctx := context.Background()

	telemetry.InitSlog(false)
	tel, err := telemetry.SetupFromEnv(ctx, "suse-cli")
	if err != nil {
		slog.Warn("failed to set up telemetry", "err", err)
	}
	defer tel.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
