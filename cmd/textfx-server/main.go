package main

import (
	"context"
	"flag"
	"net/http"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"
	"textfx-backend/lib/configutil"
	"textfx-backend/lib/util/serviceutil"
)

func main() {
	configPath := flag.String("config", "config.json5", "The configuration file to read.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	cfg, err := configutil.ReadConfigWithDefaults(*configPath, defaultConfig())
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(cfg.Verbose)

	otel, err := telemetry.Setup(ctx, "textfx-server", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer func() {
		err := otel.Shutdown(context.Background())
		if err != nil {
			serviceutil.Fatal("failed to flush telemetry", err)
		}
	}()

	tel := telemetry.SlogAPI{}
	telemetry.InstrumentPerfStats(ctx, tel)

	generator, err := textfx.NewGenerator(cfg.Generator, tel, chrono.StandardImpl{})
	if err != nil {
		serviceutil.Fatal("failed to create generator", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, generator, tel)

	serviceutil.StartHttpServer(ctx, cfg.Port, mux)
}
