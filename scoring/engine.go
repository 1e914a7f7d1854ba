// Package scoring serves credit assessments from the resident risk model.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/liamcoop/greenscore/explain"
	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/gbdt"
	"github.com/liamcoop/greenscore/modelstore"
)

// loadTimeout bounds a shared store load, which outlives the caller that
// started it.
const loadTimeout = 30 * time.Second

// Score bounds.
const (
	MinCreditScore = 300
	MaxCreditScore = 900
	MaxSDGScore    = 100
)

// Result is one assessment. It is never mutated after Predict returns it.
type Result struct {
	DefaultProbability float64              `json:"default_probability"`
	CreditScore        int                  `json:"credit_score"`
	SDGScore           int                  `json:"sdg_score"`
	RiskFactors        []explain.RiskFactor `json:"risk_factors"`
}

// Status describes the resident model.
type Status struct {
	Loaded     bool       `json:"model_loaded"`
	ArtifactID string     `json:"artifact_id,omitempty"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
}

// Engine owns the risk model. The model is loaded from the store on first
// use; concurrent first callers share a single load. Once resident it is
// read-only until Reload or SetModel swaps it.
type Engine struct {
	store modelstore.Store
	group singleflight.Group

	mu         sync.RWMutex
	model      *gbdt.Model
	artifactID uuid.UUID
	loadedAt   time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithArtifact installs a if its feature names match, skipping the first
// store load.
func WithArtifact(a *modelstore.Artifact) Option {
	return func(e *Engine) {
		if err := e.SetModel(a); err != nil {
			slog.Warn("ignoring preloaded artifact", "error", err)
		}
	}
}

// NewEngine creates an engine that loads lazily from store.
func NewEngine(store modelstore.Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict scores r.
func (e *Engine) Predict(ctx context.Context, r features.Record) (*Result, error) {
	if err := features.Validate(r); err != nil {
		return nil, err
	}
	m, err := e.resident(ctx)
	if err != nil {
		return nil, err
	}

	v := features.Process(r)
	p := m.PredictProba(v.Values())

	res := &Result{
		DefaultProbability: p,
		CreditScore:        CreditScore(p),
		SDGScore:           SDGScore(v.SDGIndex),
		RiskFactors:        explain.Explain(m, v),
	}

	slog.Debug("prediction",
		"default_probability", p,
		"credit_score", res.CreditScore,
		"sdg_score", res.SDGScore)

	return res, nil
}

// Explain returns the ranked risk factors for r without scoring it.
func (e *Engine) Explain(ctx context.Context, r features.Record) ([]explain.RiskFactor, error) {
	if err := features.Validate(r); err != nil {
		return nil, err
	}
	m, err := e.resident(ctx)
	if err != nil {
		return nil, err
	}
	return explain.Explain(m, features.Process(r)), nil
}

// CreditScore maps a default probability to 300..900: floor(300 + (1-p)*600).
func CreditScore(p float64) int {
	p = math.Min(math.Max(p, 0), 1)
	return int(math.Floor(MinCreditScore + (1-p)*(MaxCreditScore-MinCreditScore)))
}

// SDGScore caps the SDG index at 100 and truncates it.
func SDGScore(index float64) int {
	return int(math.Floor(math.Max(0, math.Min(index, MaxSDGScore))))
}

// Status reports whether a model is resident. It never triggers a load.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return Status{}
	}
	at := e.loadedAt
	return Status{Loaded: true, ArtifactID: e.artifactID.String(), LoadedAt: &at}
}

// Reload replaces the resident model with the store's current artifact. On
// failure the previous model stays resident. A reload that overlaps a
// first-use load shares it.
func (e *Engine) Reload(ctx context.Context) error {
	_, err, _ := e.group.Do("load", func() (any, error) {
		return e.load(ctx)
	})
	return err
}

// SetModel installs a freshly trained artifact without going through the
// store.
func (e *Engine) SetModel(a *modelstore.Artifact) error {
	if a == nil || a.Model == nil {
		return failure.Configuration("set model", errors.New("artifact has no model"))
	}
	if err := checkFeatures(a.Model); err != nil {
		return failure.Configuration("set model", err)
	}
	e.install(a)
	return nil
}

func (e *Engine) resident(ctx context.Context) (*gbdt.Model, error) {
	e.mu.RLock()
	m := e.model
	e.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	v, err, _ := e.group.Do("load", func() (any, error) {
		e.mu.RLock()
		m := e.model
		e.mu.RUnlock()
		if m != nil {
			return m, nil
		}
		return e.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*gbdt.Model), nil
}

// load runs detached from ctx's cancellation so one caller going away does
// not fail everyone waiting on the same load.
func (e *Engine) load(ctx context.Context) (*gbdt.Model, error) {
	const op = "load model"

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	a, err := e.store.Load(ctx)
	if errors.Is(err, modelstore.ErrNotFound) {
		return nil, failure.Configuration(op, fmt.Errorf("no trained model available, run training first: %w", err))
	}
	if err != nil {
		return nil, failure.Configuration(op, err)
	}
	if err := checkFeatures(a.Model); err != nil {
		return nil, failure.Configuration(op, err)
	}

	e.install(a)
	slog.Info("model loaded", "artifact_id", a.ID.String(), "trees", len(a.Model.Trees))
	return a.Model, nil
}

func (e *Engine) install(a *modelstore.Artifact) {
	e.mu.Lock()
	e.model = a.Model
	e.artifactID = a.ID
	e.loadedAt = time.Now()
	e.mu.Unlock()
}

func checkFeatures(m *gbdt.Model) error {
	if !features.MatchesNames(m.FeatureNames) {
		return fmt.Errorf("artifact features %v do not match engine features %v", m.FeatureNames, features.Names())
	}
	return nil
}
