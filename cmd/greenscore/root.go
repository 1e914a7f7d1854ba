package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/liamcoop/greenscore/config"
	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/internal/logger"
	"github.com/liamcoop/greenscore/modelstore"
)

var version = "dev"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "greenscore",
		Short: "Greenscore - ESG-aware credit scoring",
		Long: `Greenscore scores thin-file rural applicants from financial, alternative
and ESG signals.

Generate a synthetic training set, train the risk model into the configured
model store, and score applicant records from the command line.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		opts := logger.FromEnv("greenscore")
		opts.Output = cmd.ErrOrStderr()
		if a.debug {
			opts.Level = logger.LevelDebug
		}
		logger.Init(cmd.Context(), opts)

		cfg, err := config.Load(a.configPath)
		if err != nil {
			return failure.Configuration("load config", err)
		}
		a.cfg = cfg
		return nil
	}

	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newTrainCommand(a))
	cmd.AddCommand(newPredictCommand(a))

	return cmd
}

// modelStore opens the configured model store.
func (a *app) modelStore() (modelstore.Store, error) {
	s, err := modelstore.Open(a.cfg.Model)
	if err != nil {
		return nil, failure.Configuration("open model store", err)
	}
	return s, nil
}

func execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}
