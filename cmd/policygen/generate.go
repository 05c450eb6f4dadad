package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/policygen/internal/app"
	"github.com/hyperifyio/policygen/internal/export"
)

func newGenerateCmd(g *globalOptions) *cobra.Command {
	var cfg app.Config
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Research sources and draft a policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(g, &cfg); err != nil {
				return err
			}
			closer := app.SetupLogging(cfg.Verbose, cfg.LogFile)
			defer closer.Close()

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.SetStdout(cmd.OutOrStdout())

			out, err := a.Run(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.ErrOrStderr()
			res := out.Result
			fmt.Fprintf(w, "Drafted %s for %s from %d of %d sources.\n",
				res.PolicyType, res.Jurisdiction, res.ExtractionSuccessCount, len(res.Outcomes))
			for _, o := range res.Outcomes {
				mark := "ok"
				if !o.Succeeded() {
					mark = "failed"
				}
				fmt.Fprintf(w, "  [%s] %s\n", mark, o.Source.URL)
			}
			if out.Path != "" {
				fmt.Fprintf(w, "Written to %s\n", out.Path)
			}
			if out.ManifestPath != "" {
				fmt.Fprintf(w, "Manifest: %s\n", out.ManifestPath)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, export.Disclaimer)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.PolicyType, "policy", "", "Policy to draft; a predefined name or free text")
	f.StringVar(&cfg.Category, "category", "", "Category the policy must belong to (see `policygen catalog`)")
	f.StringVar(&cfg.Country, "country", "", "Country or region the policy applies to")
	f.StringVar(&cfg.Region, "region", "", "State or province for federal countries")

	f.StringVarP(&cfg.OutputPath, "output", "o", "", "Output file path; - writes to stdout")
	f.StringVar(&cfg.OutputDir, "output-dir", "", "Directory for the generated file when --output is not set")
	f.StringVar(&cfg.Format, "format", "", "Output format: txt, md or pdf")
	f.BoolVar(&cfg.WriteManifest, "manifest", false, "Write a JSON sidecar describing sources and model")

	f.StringVar(&cfg.TavilyAPIKey, "search.key", "", "Tavily API key (prefer TAVILY_API_KEY)")
	f.StringVar(&cfg.TavilyBaseURL, "search.base", "", "Tavily API base URL")
	f.StringSliceVar(&cfg.IncludeDomains, "search.domains", nil, "Restrict search to these domains")

	f.StringVar(&cfg.LLMProvider, "llm.provider", "", "LLM provider: openai (Gemini compatible) or anthropic")
	f.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	f.StringVar(&cfg.LLMModel, "llm.model", "", "Model name")
	f.StringVar(&cfg.LLMAPIKey, "llm.key", "", "LLM API key (prefer GEMINI_API_KEY)")
	f.StringVar(&cfg.SystemPrompt, "system-prompt", "", "Optional system message sent before the drafting prompt")

	f.StringVar(&cfg.Browser, "browser", "", "Page loader: rod (headless Chromium) or static (plain HTTP)")
	f.StringVar(&cfg.BrowserBin, "browser.bin", "", "Path to the Chromium binary")
	f.BoolVar(&cfg.ShowBrowser, "browser.show", false, "Run the browser with a visible window")
	f.StringVar(&cfg.UserAgent, "user-agent", "", "User-Agent for page loads")
	f.StringSliceVar(&cfg.Selectors, "selectors", nil, "Content selectors tried in order before the body")
	f.IntVar(&cfg.MaxSources, "max-sources", 0, "Maximum number of search results to extract")
	f.IntVar(&cfg.MaxChars, "max-chars", 0, "Maximum characters kept per source")
	f.DurationVar(&cfg.Delay, "delay", 0, "Pause between extractions; negative disables")
	f.DurationVar(&cfg.NavigationTimeout, "nav-timeout", 0, "Page navigation timeout")
	f.DurationVar(&cfg.ReadyTimeout, "ready-timeout", 0, "Timeout waiting for the page body")

	f.StringVar(&cfg.CacheDir, "cache.dir", "", "Enable HTTP and LLM caching under this directory")
	f.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this on start")
	f.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear the cache directory before running")
	f.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Create cache files with 0600 and dirs with 0700")
	return cmd
}

// resolveConfig layers the environment and the optional config file under
// the values given on the command line.
func resolveConfig(g *globalOptions, cfg *app.Config) error {
	if err := app.LoadEnvFiles(g.envFiles...); err != nil {
		return err
	}
	cfg.Verbose = cfg.Verbose || g.verbose
	if cfg.LogFile == "" {
		cfg.LogFile = g.logFile
	}
	app.ApplyEnvToConfig(cfg)
	if g.configPath != "" {
		fc, err := app.LoadConfigFile(g.configPath)
		if err != nil {
			return err
		}
		app.ApplyFileConfig(cfg, fc)
	}
	return nil
}
