package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported vacuum models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalogue(modelsFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tFAN SPEEDS\tCOMMANDS")
			for _, code := range cat.Codes() {
				m, err := cat.Lookup(code)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					m.Code, m.Name,
					strings.Join(m.FriendlyFanSpeeds(), ", "),
					len(m.SupportedCommands()))
			}
			return w.Flush()
		},
	}
}
