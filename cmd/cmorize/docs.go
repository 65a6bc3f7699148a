package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

//go:embed docs/configuration.md
var configurationDoc string

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Show the configuration format documentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) {
				fmt.Print(configurationDoc)
				return nil
			}
			renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
			if err != nil {
				fmt.Print(configurationDoc)
				return nil
			}
			rendered, err := renderer.Render(configurationDoc)
			if err != nil {
				fmt.Print(configurationDoc)
				return nil
			}
			fmt.Print(rendered)
			return nil
		},
	}
}
