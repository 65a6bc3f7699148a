package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/esm-tools/cmorize/pkg/cmorizer"
	"github.com/esm-tools/cmorize/pkg/config"
	"github.com/esm-tools/cmorize/pkg/scheduler"
)

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <config>",
		Short: "Run the full cmorization described by a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			c, err := cmorizer.FromDocument(doc)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcomes, err := c.Run(ctx)
			if err != nil {
				return err
			}
			printOutcomes(outcomes)
			if !scheduler.Succeeded(outcomes) {
				return fmt.Errorf("one or more rules did not complete")
			}
			return nil
		},
	}
}

func printOutcomes(outcomes []scheduler.Outcome) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		pterm.DisableColor()
	}

	rows := pterm.TableData{{"Rule", "Status", "Outputs", "Duration"}}
	for _, o := range outcomes {
		status := string(o.Status)
		switch o.Status {
		case scheduler.StatusSuccess:
			status = pterm.Green(status)
		case scheduler.StatusFailed:
			status = pterm.Red(status)
		case scheduler.StatusCancelled:
			status = pterm.Yellow(status)
		}
		rows = append(rows, []string{
			o.RuleID,
			status,
			fmt.Sprintf("%d", len(o.Outputs)),
			o.Duration.Round(time.Millisecond).String(),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	for _, o := range outcomes {
		if o.Err != nil {
			pterm.Error.Printfln("%s: %v", o.RuleID, o.Err)
		}
	}
}
