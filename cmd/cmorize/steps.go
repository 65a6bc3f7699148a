package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esm-tools/cmorize/pkg/pipeline"
)

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the registered pipeline steps",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range pipeline.StepNames() {
				fmt.Println(name)
			}
		},
	}
}
