package commands

import (
	"context"
	"fmt"
	"os"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"
	"textfx-backend/lib/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Generator textfx.Config        `json:"generator"`
	Telemetry telemetry.OtlpConfig `json:"telemetry"`
}

var (
	configPath *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "textfx-cli",
	Short: "textfx-cli generates and debugs text effect images.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file to read.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup reads the configuration and installs logging and telemetry, the returned function
// flushes telemetry.
func setup(ctx context.Context) (*textfx.Generator, telemetry.API, func(), error) {
	telemetry.InitSlog(*verbose)

	cfg, err := configutil.ReadConfigWithDefaults(*configPath, Config{
		Generator: textfx.DefaultConfig(),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read config: %w", err)
	}

	otel, err := telemetry.Setup(ctx, "textfx-cli", cfg.Telemetry)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup telemetry: %w", err)
	}
	shutdown := func() {
		err := otel.Shutdown(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush telemetry:", err)
		}
	}

	tel := telemetry.SlogAPI{}
	generator, err := textfx.NewGenerator(cfg.Generator, tel, chrono.StandardImpl{})
	if err != nil {
		shutdown()
		return nil, nil, nil, err
	}
	return generator, tel, shutdown, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func renderResult(res textfx.GenerationResult) {
	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Succeeded", res.Succeeded},
		{"Image", res.ImageUrl},
		{"Strategy", res.Strategy},
		{"Content-Type", res.ContentType},
		{"Content-Length", res.ContentLength},
		{"Likely generated", res.IsLikelyGenerated},
	})
	if res.FailureReason != "" {
		t.AppendRow(table.Row{"Failure", res.FailureReason})
	}
	t.AppendSeparator()
	renderDiagnostics(t, res.Diagnostics)
	for _, warning := range res.Warnings {
		t.AppendRow(table.Row{"Warning", warning})
	}
	t.Render()
}

func renderDiagnostics(t table.Writer, d textfx.Diagnostics) {
	t.AppendRows([]table.Row{
		{"Final url", d.FinalUrl},
		{"Response bytes", d.ResponseBytes},
		{"Forms found", d.FormsFound},
		{"Images found", d.ImagesFound},
		{"Mentions processing", d.ProcessingMentioned},
	})
}
