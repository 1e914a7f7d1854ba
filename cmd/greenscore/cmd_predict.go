package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/recommend"
	"github.com/liamcoop/greenscore/scoring"
)

// assessment mirrors the API's assess response.
type assessment struct {
	Analysis        *scoring.Result `json:"analysis"`
	Recommendations []string        `json:"recommendations"`
	Status          string          `json:"status"`
}

func newPredictCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score applicant records with the stored model",
		Long: `Predict reads one applicant record as a JSON object, or several as a JSON
array, scores them with the model in the configured store and prints the
assessments with their recommendations as JSON.

Use --input - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			records, many, err := parseRecords(raw)
			if err != nil {
				return err
			}

			store, err := a.modelStore()
			if err != nil {
				return err
			}
			engine := scoring.NewEngine(store)

			recommender, err := recommend.NewEngine(recommend.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			if err := recommender.SeedDefaults(); err != nil {
				return err
			}

			out := make([]assessment, 0, len(records))
			for _, r := range records {
				res, err := engine.Predict(cmd.Context(), r)
				if err != nil {
					return err
				}
				recs, err := recommender.Recommend(recommend.Assessment{
					CreditScore:        res.CreditScore,
					SDGScore:           res.SDGScore,
					DefaultProbability: res.DefaultProbability,
				})
				if err != nil {
					return err
				}
				out = append(out, assessment{Analysis: res, Recommendations: recs, Status: "success"})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if many {
				return enc.Encode(out)
			}
			return enc.Encode(out[0])
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Applicant JSON file, or - for stdin")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.MalformedInput("read input", err)
	}
	return data, nil
}

// parseRecords accepts a single object or an array of objects. many
// reports which form was given.
func parseRecords(data []byte) (records []features.Record, many bool, err error) {
	const op = "parse input"

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, failure.MalformedInput(op, fmt.Errorf("input is empty"))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var objs []map[string]any
	if trimmed[0] == '[' {
		many = true
		if err := dec.Decode(&objs); err != nil {
			return nil, true, failure.MalformedInput(op, err)
		}
		if len(objs) == 0 {
			return nil, true, failure.MalformedInput(op, fmt.Errorf("input array is empty"))
		}
	} else {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, false, failure.MalformedInput(op, err)
		}
		objs = []map[string]any{obj}
	}

	records = make([]features.Record, len(objs))
	for i, obj := range objs {
		r, err := features.FromMap(obj)
		if err != nil {
			if many {
				return nil, true, fmt.Errorf("record %d: %w", i, err)
			}
			return nil, false, err
		}
		records[i] = r
	}
	return records, many, nil
}
