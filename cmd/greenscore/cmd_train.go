package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamcoop/greenscore/trainer"
)

func newTrainCommand(a *app) *cobra.Command {
	var data string
	var trees, maxDepth int
	var learningRate float64

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the credit risk model and save it to the model store",
		Long: `Train fits the gradient-boosted risk model on a labelled applicant CSV
(see generate) and saves it as a new artifact in the configured model store.

Boosting parameters come from the config file's training section; the flags
below override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, labels, err := trainer.LoadCSV(data)
			if err != nil {
				return err
			}

			params := a.cfg.Training
			if cmd.Flags().Changed("trees") {
				params.Trees = trees
			}
			if cmd.Flags().Changed("max-depth") {
				params.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("learning-rate") {
				params.LearningRate = learningRate
			}

			store, err := a.modelStore()
			if err != nil {
				return err
			}

			t := &trainer.Trainer{Store: store, Params: params}
			artifact, err := t.TrainAndSave(cmd.Context(), records, labels)
			if err != nil {
				return err
			}

			defaults := 0
			for _, l := range labels {
				defaults += l
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained artifact %s on %d records (%d defaults), %d trees, saved to %s store\n",
				artifact.ID, len(records), defaults, len(artifact.Model.Trees), a.cfg.Model.Backend)
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", defaultDataPath, "Labelled training CSV")
	cmd.Flags().IntVar(&trees, "trees", 0, "Number of boosting rounds")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum tree depth")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "Shrinkage applied to each tree")

	return cmd
}
