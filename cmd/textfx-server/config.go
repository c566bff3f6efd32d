package main

import (
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"
)

type Config struct {
	Port      int                  `json:"port"`
	Verbose   bool                 `json:"verbose"`
	Generator textfx.Config        `json:"generator"`
	Telemetry telemetry.OtlpConfig `json:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		Port:      8080,
		Generator: textfx.DefaultConfig(),
	}
}
