package main

import (
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	envFiles   []string
	verbose    bool
	logFile    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "policygen",
		Short: "Draft HR policies grounded in official regulatory sources",
		Long: `policygen researches official sources for a policy type and jurisdiction
and drafts a policy document from them.

  policygen catalog                      list predefined policies and countries
  policygen generate --policy "Remote Work" --country Germany
  policygen generate --policy Overtime --country Canada --region Ontario --format md`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files to load; the process environment wins")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	pf.StringVar(&opts.logFile, "log.file", "", "Also write JSON logs to this rotated file")

	root.AddCommand(newGenerateCmd(opts), newCatalogCmd(), newVersionCmd())
	return root
}
