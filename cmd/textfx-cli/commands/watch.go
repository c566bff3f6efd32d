package commands

import (
	"log/slog"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"
	"textfx-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

const (
	report_watch_generate = "watch.generate"
	report_watch_success  = "watch.succeeded"
)

var (
	watchUrl      *string
	watchTexts    *[]string
	watchSchedule *string
)

func init() {
	watchUrl = watchCmd.Flags().StringP("url", "u", "", "The effect page url.")
	watchTexts = watchCmd.Flags().StringArrayP("text", "t", []string{"textfx"}, "A text to render, repeat for effects with several inputs.")
	watchSchedule = watchCmd.Flags().String("schedule", "*/5 * * * *", "The cron schedule to generate on.")
	watchCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(watchCmd)
}

// watchCmd periodically runs a generation so that changes to the provider's markup show up
// in the logs (and metrics) before users run into them.
var watchCmd = &cobra.Command{
	Use:   "watch --url <effect page> [--schedule <cron>]",
	Short: "Generates on a schedule and reports the outcome, to notice provider changes early.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		generator, tel, shutdown, err := setup(ctx)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer shutdown()

		tel = telemetry.NewScopedAPI("textfx-cli", tel)
		telemetry.InstrumentPerfStats(ctx, tel)

		var successes int64
		job := func() {
			res, err := generator.Generate(ctx, textfx.GenerationRequest{
				TargetPageUrl: *watchUrl,
				Texts:         *watchTexts,
			})
			if err != nil {
				tel.ReportBroken(report_watch_generate, err)
				return
			}
			if !res.Succeeded {
				tel.ReportWarning(
					report_watch_generate,
					res.FailureReason,
					"response_bytes", res.Diagnostics.ResponseBytes,
					"forms", res.Diagnostics.FormsFound,
					"images", res.Diagnostics.ImagesFound,
				)
				return
			}
			if !res.IsLikelyGenerated {
				tel.ReportWarning(report_watch_generate, "result does not look generated", res.ImageUrl, res.Warnings)
			}
			successes++
			tel.ReportCount(report_watch_success, successes)
			slog.Info("generated", "strategy", res.Strategy, "image", res.ImageUrl)
		}

		cron := chrono.NewStandardCron(nil, tel)
		err = cron.Cron(*watchSchedule, job)
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}

		slog.Info("watching", "url", *watchUrl, "schedule", *watchSchedule)
		<-ctx.Done()
		cron.Stop()
	},
}
