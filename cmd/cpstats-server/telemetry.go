package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/pkg/serviceutil"
)

// InitTelemetry sets up logging and, when a telemetry.json5 can be found,
// otel export. The returned function flushes the exporters.
func InitTelemetry(ctx context.Context, verbose bool) func() {
	telemetry.InitSlog(verbose)
	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	t, err := telemetry.SetupFromEnv(ctx, "cpstats-server")
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no telemetry.json5 found, otel export disabled")
		return func() {}
	}
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx, telemetry.SlogAPI{})

	return func() {
		err := t.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err.Error())
		}
	}
}
