package model

import "math"

// LogisticConfig holds training hyperparameters for the baseline model
type LogisticConfig struct {
	LearningRate float64
	Epochs       int
	L2           float64
	// BalanceClasses reweights the positive class by the inverse class
	// frequency, the usual treatment for imbalanced churn labels.
	BalanceClasses bool
}

// DefaultLogisticConfig returns the baseline hyperparameters
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		LearningRate:   0.1,
		Epochs:         400,
		L2:             1e-4,
		BalanceClasses: true,
	}
}

// LogisticModel is a dense logistic regression over encoded features
type LogisticModel struct {
	Weights []float64
	Bias    float64
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// TrainLogistic fits a logistic regression with full-batch gradient descent
func TrainLogistic(x [][]float64, y []int, cfg LogisticConfig) *LogisticModel {
	if len(x) == 0 {
		return &LogisticModel{}
	}

	dim := len(x[0])
	m := &LogisticModel{Weights: make([]float64, dim)}

	n := float64(len(x))
	posWeight, negWeight := 1.0, 1.0
	if cfg.BalanceClasses {
		pos := 0
		for _, label := range y {
			if label == 1 {
				pos++
			}
		}
		neg := len(y) - pos
		if pos > 0 && neg > 0 {
			posWeight = n / (2.0 * float64(pos))
			negWeight = n / (2.0 * float64(neg))
		}
	}

	grad := make([]float64, dim)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for i := range grad {
			grad[i] = 0
		}
		gradBias := 0.0

		for i, xi := range x {
			err := m.Proba(xi) - float64(y[i])
			w := negWeight
			if y[i] == 1 {
				w = posWeight
			}
			err *= w

			for j, v := range xi {
				grad[j] += err * v
			}
			gradBias += err
		}

		for j := range m.Weights {
			m.Weights[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*m.Weights[j])
		}
		m.Bias -= cfg.LearningRate * gradBias / n
	}

	return m
}

// Proba returns P(churn=1 | x)
func (m *LogisticModel) Proba(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		if j < len(x) {
			z += w * x[j]
		}
	}
	return sigmoid(z)
}
