package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/metaexpert/config"
)

type rootFlags struct {
	configPath string
	provider   string
	model      string
	search     string
	logLevel   string
	maxSteps   int
	plain      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "metaexpert",
		Short: "Meta-expert question answering",
		Long: `metaexpert routes every question through a coordinator that writes a
directive for one of two experts: one answers directly, the other searches
the web, picks the best page and fetches it.

Configuration is read from metaexpert.yaml in the working directory or
~/.config/metaexpert, and from METAEXPERT_* environment variables.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a config file")
	pf.StringVar(&flags.provider, "provider", "", "model provider (openai, anthropic, gemini, mock)")
	pf.StringVar(&flags.model, "model", "", "model name")
	pf.StringVar(&flags.search, "search", "", "search provider (serper, duckduckgo)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.IntVar(&flags.maxSteps, "max-steps", 0, "step budget per run")
	pf.BoolVar(&flags.plain, "plain", false, "print answers without markdown rendering")

	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newConfigCmd(flags))

	return cmd
}

// loadConfig reads the config and applies flag overrides.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.provider != "" {
		cfg.Model.Provider = f.provider
	}
	if f.model != "" {
		cfg.Model.Name = f.model
	}
	if f.search != "" {
		cfg.Search.Provider = f.search
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.maxSteps > 0 {
		cfg.Run.MaxSteps = f.maxSteps
	}

	return cfg, cfg.Validate()
}
