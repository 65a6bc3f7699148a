package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/esm-tools/cmorize/pkg/cmorizer"
	"github.com/esm-tools/cmorize/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a config file without processing anything",
		Long: `validate loads the config document, resolves every rule against the
defaults and data request tables, and binds every pipeline reference. It
reports the resolved rule set and fails on the first problem.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			c, err := cmorizer.FromDocument(doc)
			if err != nil {
				return err
			}

			if !isatty.IsTerminal(os.Stdout.Fd()) {
				pterm.DisableColor()
			}
			rows := pterm.TableData{{"Rule", "Model variable", "Table", "Pipelines"}}
			for _, r := range c.Rules() {
				rows = append(rows, []string{
					r.ID(),
					r.ModelVariable(),
					r.CmorTable(),
					pterm.Sprintf("%d", len(r.PipelineRefs())),
				})
			}
			_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
			pterm.Success.Printfln("%d rules resolved", len(c.Rules()))
			return nil
		},
	}
}
