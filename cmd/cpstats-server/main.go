package main

import (
	"flag"
	"log/slog"

	"cpstats-backend/internal/app"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/server"
	"cpstats-backend/pkg/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", app.ConfigPath(), "Path to the json5 config file.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	shutdown := InitTelemetry(ctx, *verbose)
	defer shutdown()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	tel := telemetry.SlogAPI{}
	instance, err := app.New(cfg, tel)
	if err != nil {
		serviceutil.Fatal("init app", err)
	}
	defer instance.Close()
	slog.Info("scrapers enabled", "platforms", instance.Platforms())

	srv := server.New(instance.Service, tel, server.Options{
		CacheMaxAge: cfg.CacheMaxAge,
	})
	err = serviceutil.StartHttpServer(ctx, cfg.Port, srv.Handler())
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}
