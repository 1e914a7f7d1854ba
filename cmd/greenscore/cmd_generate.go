package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/liamcoop/greenscore/internal/logger"
	"github.com/liamcoop/greenscore/synth"
)

const defaultDataPath = "data/applicants.csv"

func newGenerateCommand() *cobra.Command {
	var rows int
	var seed uint64
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic labelled applicant CSV",
		Long: `Generate a synthetic training set of rural applicants.

The same --rows and --seed always produce the same file. Use --out - to
write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows < 1 {
				return fmt.Errorf("--rows must be at least 1, got %d", rows)
			}
			samples := synth.Generate(rows, seed)

			if out == "-" {
				return synth.WriteCSV(cmd.OutOrStdout(), samples)
			}
			if err := writeFile(out, func(w io.Writer) error { return synth.WriteCSV(w, samples) }); err != nil {
				return err
			}

			defaults := 0
			for _, s := range samples {
				defaults += s.IsDefault
			}
			logger.Info("synthetic data written", "path", out, "rows", rows, "seed", seed, "defaults", defaults)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows (%d defaults) to %s\n", rows, defaults, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 1000, "Number of applicants to generate")
	cmd.Flags().Uint64Var(&seed, "seed", synth.DefaultSeed, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", defaultDataPath, "Output CSV path, or - for stdout")

	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
