package promote

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// metricPreference is the fixed comparison order: precision-recall metrics
// first, because churn labels are imbalanced.
var metricPreference = []string{"pr_auc", "average_precision", "roc_auc", "f1", "accuracy"}

// unknownMetric marks a candidate whose record carries none of the
// recognized keys; its score of -1 makes it effectively un-promotable
// unless it is the only candidate.
const unknownMetric = "unknown"

// NoPromotableArtifactError reports an empty candidate index
type NoPromotableArtifactError struct {
	ModelsDir  string
	MetricsDir string
}

func (e *NoPromotableArtifactError) Error() string {
	return fmt.Sprintf(
		"no promotable models found: no *.json metric record in %s has a matching *.gob artifact in %s (run `churn train` first)",
		e.MetricsDir, e.ModelsDir)
}

// Candidate is one trained-and-evaluated artifact, paired with its metric
// record by filename stem. Rebuilt from a directory scan on every run.
type Candidate struct {
	Stem        string
	ModelPath   string
	MetricsPath string
	Score       float64
	MetricName  string
}

// Record describes a completed promotion
type Record struct {
	RunID             string    `json:"run_id"`
	PromotedFromModel string    `json:"promoted_from_model"`
	MetricUsed        string    `json:"metric_used"`
	Score             float64   `json:"score"`
	ProductionModel   string    `json:"production_model"`
	ProductionMetrics string    `json:"production_metrics"`
	PromotedAt        time.Time `json:"promoted_at"`
}

// Promoter selects the best candidate and republishes the production alias
type Promoter struct {
	modelsDir  string
	metricsDir string
	logger     *logger.Logger
}

// New creates a Promoter over the two artifact directories
func New(modelsDir, metricsDir string, log *logger.Logger) *Promoter {
	return &Promoter{modelsDir: modelsDir, metricsDir: metricsDir, logger: log}
}

// Promote scans for candidates, picks the highest-scoring one and copies it
// to the production alias filenames. The copy goes through a temp file and
// rename so a concurrent reader never observes a partial alias; the winning
// originals stay in place for audit and rollback. With zero candidates the
// existing alias is left untouched and NoPromotableArtifactError returned.
func (p *Promoter) Promote() (*Record, error) {
	candidates, err := p.scan()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &NoPromotableArtifactError{ModelsDir: p.modelsDir, MetricsDir: p.metricsDir}
	}

	best := pick(candidates)

	prodModel := filepath.Join(p.modelsDir, model.ProductionModelFile)
	prodMetrics := filepath.Join(p.metricsDir, model.ProductionMetricsFile)

	if err := copyAtomic(best.ModelPath, prodModel); err != nil {
		return nil, fmt.Errorf("publish production model: %w", err)
	}
	if err := copyAtomic(best.MetricsPath, prodMetrics); err != nil {
		return nil, fmt.Errorf("publish production metrics: %w", err)
	}

	rec := &Record{
		RunID:             uuid.NewString(),
		PromotedFromModel: filepath.Base(best.ModelPath),
		MetricUsed:        best.MetricName,
		Score:             best.Score,
		ProductionModel:   prodModel,
		ProductionMetrics: prodMetrics,
		PromotedAt:        time.Now().UTC(),
	}

	p.logger.WithFields(map[string]interface{}{
		"artifact": rec.PromotedFromModel,
		"metric":   rec.MetricUsed,
		"score":    rec.Score,
	}).Info("Promoted model to production alias")

	return rec, nil
}

// scan builds the stem -> (artifact, metrics) index once per invocation.
// The listing is sorted lexicographically so tie-breaking is deterministic
// regardless of filesystem enumeration order. Records without a matching
// artifact are skipped, as is the alias itself.
func (p *Promoter) scan() ([]Candidate, error) {
	entries, err := os.ReadDir(p.metricsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan metrics dir %s: %w", p.metricsDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if e.Name() == model.ProductionMetricsFile {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []Candidate
	for _, name := range names {
		stem := strings.TrimSuffix(name, ".json")
		modelPath := filepath.Join(p.modelsDir, stem+".gob")
		if _, err := os.Stat(modelPath); err != nil {
			continue // unmatched record, not an error
		}

		metricsPath := filepath.Join(p.metricsDir, name)
		metricName, score, err := scoreFromRecord(metricsPath)
		if err != nil {
			return nil, err
		}

		out = append(out, Candidate{
			Stem:        stem,
			ModelPath:   modelPath,
			MetricsPath: metricsPath,
			Score:       score,
			MetricName:  metricName,
		})
	}

	return out, nil
}

// pick returns the highest score; ties keep the earliest candidate in the
// lexicographic scan order.
func pick(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

// scoreFromRecord reads a metric record and applies the preference order.
// Nested objects (confusion matrices and the like) pass through opaquely.
func scoreFromRecord(path string) (string, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read metrics record %s: %w", path, err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return "", 0, fmt.Errorf("parse metrics record %s: %w", path, err)
	}

	for _, key := range metricPreference {
		if v, ok := record[key]; ok {
			if f, isNum := v.(float64); isNum {
				return key, f, nil
			}
		}
	}
	return unknownMetric, -1, nil
}

// copyAtomic copies src to dst via a temp file in the destination
// directory followed by a rename.
func copyAtomic(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".promote-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
