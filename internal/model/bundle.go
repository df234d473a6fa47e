package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/churn-mlops/internal/dataset"
)

// Production alias filenames: the fixed, well-known names every downstream
// reader uses to find "the current model" regardless of which timestamped
// candidate produced it.
const (
	ProductionModelFile   = "production_latest.gob"
	ProductionMetricsFile = "production_latest.json"
)

// Model types stored in a bundle
const (
	TypeLogistic      = "logistic_regression"
	TypeBoostedStumps = "boosted_stumps"
)

// Scorer is the probability-scoring capability the batch scorer and the
// serving layer depend on. Any classifier may sit behind it.
type Scorer interface {
	PredictProba(row dataset.Row) float64
}

// Bundle is the self-contained trained artifact: the fitted encoder plus
// exactly one estimator. It serializes as a single gob file.
type Bundle struct {
	ModelType string
	Encoder   *Encoder
	Logistic  *LogisticModel
	Boosted   *BoostedStumps
	TrainedAt time.Time
	Settings  map[string]string
}

// PredictProba encodes the raw row and scores it with the wrapped estimator
func (b *Bundle) PredictProba(row dataset.Row) float64 {
	x := b.Encoder.Transform(row)

	switch b.ModelType {
	case TypeBoostedStumps:
		return b.Boosted.Proba(x)
	default:
		return b.Logistic.Proba(x)
	}
}

// Save writes the bundle atomically (temp file + rename) so a concurrent
// reader never observes a partially written artifact.
func (b *Bundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

// Load reads a bundle from disk
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact %s: %w", path, err)
	}
	defer f.Close()

	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	return &b, nil
}

// LoadProduction resolves the production alias in modelsDir. The error
// names the missing path and the remediating prior step.
func LoadProduction(modelsDir string) (*Bundle, string, error) {
	path := filepath.Join(modelsDir, ProductionModelFile)
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf(
			"missing production model alias %s (run `churn promote` first): %w", path, err)
	}

	b, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return b, path, nil
}
