package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/policygen/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List predefined policy types and popular countries",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			for _, c := range catalog.Categories() {
				fmt.Fprintln(w, c.Name)
				for _, p := range c.Policies {
					fmt.Fprintf(w, "  - %s\n", catalog.PolicyType(p))
				}
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Popular countries (* accepts --region for a state or province)")
			for _, c := range catalog.PopularCountries {
				mark := " "
				if catalog.IsFederal(c) {
					mark = "*"
				}
				fmt.Fprintf(w, " %s %s\n", mark, c)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Any other policy name or country can be given as free text.")
		},
	}
}
