// Package modelstore persists the trained risk model. Every backend stores
// the same encoding: the JSON artifact compressed with zstd.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/liamcoop/greenscore/gbdt"
)

// ErrNotFound is returned by Load when no artifact has been saved.
var ErrNotFound = errors.New("model artifact not found")

// Store loads and saves the single current artifact. Save overwrites, and
// a concurrent Load sees either the old or the new artifact in full.
type Store interface {
	Load(ctx context.Context) (*Artifact, error)
	Save(ctx context.Context, a *Artifact) error
}

// Artifact is a trained model plus identifying metadata.
type Artifact struct {
	ID        uuid.UUID   `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Model     *gbdt.Model `json:"model"`
}

// NewArtifact wraps m with a fresh id and timestamp.
func NewArtifact(m *gbdt.Model) *Artifact {
	return &Artifact{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Model:     m,
	}
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes a. Float64 values use shortest round-trip formatting,
// so a decoded model predicts bit-identically.
func Encode(a *Artifact) ([]byte, error) {
	if a == nil || a.Model == nil {
		return nil, errors.New("artifact has no model")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode reverses Encode and validates the model structure.
func Decode(b []byte) (*Artifact, error) {
	raw, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	if a.Model == nil {
		return nil, errors.New("artifact has no model")
	}
	if err := a.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", a.ID, err)
	}
	return &a, nil
}
