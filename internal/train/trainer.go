package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// TrainingDatasetFile is the labeled dataset produced by the feature stage
const TrainingDatasetFile = "training_dataset.csv"

// Columns never fed to the estimator: identifiers, temporal keys and the
// label itself (leak protection).
var dropCols = map[string]struct{}{
	dataset.ColChurnLabel: {},
	dataset.ColUserID:     {},
	dataset.ColAsOfDate:   {},
	dataset.ColSignupDate: {},
}

// Settings holds trainer inputs and hyper-level knobs
type Settings struct {
	FeaturesDir       string
	ModelsDir         string
	MetricsDir        string
	TestFraction      float64
	Seed              int64
	ImbalanceStrategy string // class_weight | none
}

// Result names the artifacts one training run produced
type Result struct {
	ModelPath   string
	MetricsPath string
	Record      MetricsRecord
}

// Trainer fits a model on the time-aware split and writes the paired
// artifact + metrics record the promoter consumes.
type Trainer struct {
	settings Settings
	logger   *logger.Logger
}

// New creates a Trainer
func New(settings Settings, log *logger.Logger) *Trainer {
	return &Trainer{settings: settings, logger: log}
}

// TrainBaseline fits the logistic-regression baseline. If no production
// alias exists yet the fresh artifact seeds it, so the serving layer can
// come up before the first promotion; an existing alias is never touched.
func (t *Trainer) TrainBaseline() (*Result, error) {
	res, err := t.run("baseline_logreg", func(enc *model.Encoder, x [][]float64, y []int) *model.Bundle {
		cfg := model.DefaultLogisticConfig()
		cfg.BalanceClasses = t.settings.ImbalanceStrategy == "class_weight"

		return &model.Bundle{
			ModelType: model.TypeLogistic,
			Encoder:   enc,
			Logistic:  model.TrainLogistic(x, y, cfg),
		}
	})
	if err != nil {
		return nil, err
	}

	if err := t.seedProductionAlias(res); err != nil {
		t.logger.WithError(err).Warn("Could not seed production alias")
	}
	return res, nil
}

// TrainCandidate fits the boosted-stumps challenger
func (t *Trainer) TrainCandidate() (*Result, error) {
	return t.run("candidate_stumps", func(enc *model.Encoder, x [][]float64, y []int) *model.Bundle {
		return &model.Bundle{
			ModelType: model.TypeBoostedStumps,
			Encoder:   enc,
			Boosted:   model.TrainBoostedStumps(x, y, model.DefaultBoostConfig()),
		}
	})
}

// run is the shared train/evaluate/persist path
func (t *Trainer) run(prefix string, fit func(*model.Encoder, [][]float64, []int) *model.Bundle) (*Result, error) {
	ds, err := t.loadTrainingDataset()
	if err != nil {
		return nil, err
	}

	trainSet, evalSet, err := dataset.Split(ds, t.settings.TestFraction)
	if err != nil {
		return nil, fmt.Errorf("time-aware split: %w", err)
	}

	yTrain, err := trainSet.Labels()
	if err != nil {
		return nil, err
	}
	yEval, err := evalSet.Labels()
	if err != nil {
		return nil, err
	}

	featureCols := selectFeatureColumns(ds)
	encoder := model.FitEncoder(trainSet, featureCols)

	t.logger.WithFields(map[string]interface{}{
		"prefix":     prefix,
		"train_rows": trainSet.Len(),
		"eval_rows":  evalSet.Len(),
		"features":   encoder.Dim(),
	}).Info("Training with time-aware split")

	bundle := fit(encoder, encoder.TransformAll(trainSet), yTrain)
	bundle.TrainedAt = time.Now().UTC()
	bundle.Settings = map[string]string{
		"imbalance_strategy": t.settings.ImbalanceStrategy,
		"test_fraction":      fmt.Sprintf("%g", t.settings.TestFraction),
	}

	scores := make([]float64, evalSet.Len())
	for i, row := range evalSet.Rows {
		scores[i] = bundle.PredictProba(row)
	}

	record := Evaluate(scores, yEval)
	record.ModelType = bundle.ModelType
	record.RunID = uuid.NewString()
	record.TrainedAt = bundle.TrainedAt
	record.TrainRows = trainSet.Len()
	record.TestRows = evalSet.Len()
	record.ChurnRateTrain = rate(yTrain)
	record.ChurnRateTest = rate(yEval)

	stem := fmt.Sprintf("%s_%s", prefix, bundle.TrainedAt.Format("20060102T150405Z"))
	record.Artifact = stem + ".gob"

	modelPath := filepath.Join(t.settings.ModelsDir, stem+".gob")
	metricsPath := filepath.Join(t.settings.MetricsDir, stem+".json")

	if err := bundle.Save(modelPath); err != nil {
		return nil, err
	}
	if err := record.Write(metricsPath); err != nil {
		return nil, err
	}

	t.logger.WithFields(map[string]interface{}{
		"model":   modelPath,
		"metrics": metricsPath,
		"pr_auc":  record.PRAUC,
		"roc_auc": record.ROCAUC,
	}).Info("Model trained and saved")

	return &Result{ModelPath: modelPath, MetricsPath: metricsPath, Record: record}, nil
}

// loadTrainingDataset reads the labeled dataset, naming the remediating
// prior step when it is missing.
func (t *Trainer) loadTrainingDataset() (*dataset.Table, error) {
	path := filepath.Join(t.settings.FeaturesDir, TrainingDatasetFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf(
			"missing training dataset %s (run `churn features build` first): %w", path, err)
	}
	return dataset.ReadCSV(path)
}

// seedProductionAlias publishes the baseline as the alias only when none
// exists yet; promotions own the alias afterwards.
func (t *Trainer) seedProductionAlias(res *Result) error {
	aliasModel := filepath.Join(t.settings.ModelsDir, model.ProductionModelFile)
	if _, err := os.Stat(aliasModel); err == nil {
		return nil
	}

	if err := copyFileAtomic(res.ModelPath, aliasModel); err != nil {
		return err
	}
	aliasMetrics := filepath.Join(t.settings.MetricsDir, model.ProductionMetricsFile)
	if err := copyFileAtomic(res.MetricsPath, aliasMetrics); err != nil {
		return err
	}

	t.logger.WithField("alias", aliasModel).Info("Seeded production alias from baseline")
	return nil
}

func copyFileAtomic(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".alias-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp alias: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp alias: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

// selectFeatureColumns returns every column except identifiers and label
func selectFeatureColumns(t *dataset.Table) []string {
	var cols []string
	for _, c := range t.Columns {
		if _, drop := dropCols[c]; !drop {
			cols = append(cols, c)
		}
	}
	return cols
}

func rate(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	sum := 0
	for _, l := range labels {
		sum += l
	}
	return float64(sum) / float64(len(labels))
}
