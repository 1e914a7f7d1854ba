// Package trainer fits the credit risk model on historical applicant
// records and persists it for the scoring engine.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/gbdt"
	"github.com/liamcoop/greenscore/modelstore"
)

// Train engineers every record and fits the ensemble on the model feature
// columns. labels[i] is 1 when records[i] defaulted.
func Train(records []features.Record, labels []int, p gbdt.Params) (*gbdt.Model, error) {
	const op = "train"

	if len(records) == 0 {
		return nil, failure.TrainingData(op, gbdt.ErrEmpty)
	}
	if len(records) != len(labels) {
		return nil, failure.TrainingData(op, fmt.Errorf("got %d records but %d labels", len(records), len(labels)))
	}

	y := make([]float64, len(labels))
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, failure.TrainingData(op, fmt.Errorf("row %d label %d is not 0 or 1", i, l))
		}
		y[i] = float64(l)
	}

	m, err := gbdt.Fit(features.Table(records), y, features.Names(), p)
	if err != nil {
		if errors.Is(err, gbdt.ErrParams) {
			return nil, failure.Configuration(op, err)
		}
		return nil, failure.TrainingData(op, err)
	}
	return m, nil
}

// Trainer fits models and saves them to Store.
type Trainer struct {
	Store  modelstore.Store
	Params gbdt.Params
}

// New creates a Trainer with default boosting parameters.
func New(store modelstore.Store) *Trainer {
	return &Trainer{Store: store, Params: gbdt.DefaultParams()}
}

// TrainAndSave fits a model and persists it as a new artifact. Nothing is
// written when training fails.
func (t *Trainer) TrainAndSave(ctx context.Context, records []features.Record, labels []int) (*modelstore.Artifact, error) {
	start := time.Now()

	m, err := Train(records, labels, t.Params)
	if err != nil {
		return nil, err
	}

	a := modelstore.NewArtifact(m)
	if err := t.Store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	slog.Info("model trained",
		"artifact_id", a.ID.String(),
		"records", len(records),
		"trees", len(m.Trees),
		"duration", time.Since(start))

	return a, nil
}
