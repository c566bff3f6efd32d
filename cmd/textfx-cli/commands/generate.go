package commands

import (
	"encoding/json"
	"errors"
	"os"
	"textfx-backend/internal/scrapers/textfx"
	"textfx-backend/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	generateUrl   *string
	generateTexts *[]string
	generateJson  *bool
)

func init() {
	generateUrl = generateCmd.Flags().StringP("url", "u", "", "The effect page url.")
	generateTexts = generateCmd.Flags().StringArrayP("text", "t", nil, "A text to render, repeat for effects with several inputs.")
	generateJson = generateCmd.Flags().Bool("json", false, "Print the result as json.")
	generateCmd.MarkFlagRequired("url")
	generateCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate --url <effect page> --text <text> [--text <text>...]",
	Short: "Generates a text effect image and prints where to find it.",
	Run: func(cmd *cobra.Command, args []string) {
		generator, _, shutdown, err := setup(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer shutdown()

		res, err := generator.Generate(cmd.Context(), textfx.GenerationRequest{
			TargetPageUrl: *generateUrl,
			Texts:         *generateTexts,
		})
		if err != nil {
			var pipelineErr *textfx.PipelineError
			if errors.As(err, &pipelineErr) {
				t := newTable()
				t.AppendRow(table.Row{"Stage", pipelineErr.Stage})
				t.AppendRow(table.Row{"Url", pipelineErr.Url})
				renderDiagnostics(t, pipelineErr.Diagnostics)
				t.Render()
			}
			shutdown()
			serviceutil.Fatal("generation failed", err)
		}

		if *generateJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			err = encoder.Encode(res)
			if err != nil {
				serviceutil.Fatal("failed to encode result", err)
			}
			return
		}
		renderResult(res)
	},
}
