package commands

import (
	"textfx-backend/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var inspectUrl *string

func init() {
	inspectUrl = inspectCmd.Flags().StringP("url", "u", "", "The effect page url.")
	inspectCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect --url <effect page>",
	Short: "Prints the generation form and parameters discovered on an effect page without submitting it.",
	Run: func(cmd *cobra.Command, args []string) {
		generator, _, shutdown, err := setup(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer shutdown()

		inspection, err := generator.Inspect(cmd.Context(), *inspectUrl)
		if err != nil {
			shutdown()
			serviceutil.Fatal("inspection failed", err)
		}
		analysis := inspection.Analysis

		summary := newTable()
		summary.AppendHeader(table.Row{"Parameter", "Value"})
		summary.AppendRows([]table.Row{
			{"Action", analysis.Form.Action.String()},
			{"Method", analysis.Form.Method},
			{"Synthesized", analysis.Form.Synthesized},
			{"Effect id", analysis.Parameters.EffectId},
			{"Processing server", analysis.Parameters.ProcessingServerId},
			{"Anti-forgery token", analysis.Parameters.AntiForgeryToken},
			{"Text slots", analysis.Parameters.ExpectedTextSlots},
		})
		summary.AppendSeparator()
		renderDiagnostics(summary, inspection.Diagnostics)
		summary.Render()

		fields := newTable()
		fields.AppendHeader(table.Row{"Field", "Kind", "Value", "Outside form"})
		for _, f := range analysis.Form.Fields {
			fields.AppendRow(table.Row{f.Name, f.Kind.String(), f.Value, false})
		}
		for _, f := range analysis.ExtraFields {
			fields.AppendRow(table.Row{f.Name, f.Kind.String(), f.Value, true})
		}
		fields.Render()
	},
}
