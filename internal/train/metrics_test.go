package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAveragePrecision(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []int
		want   float64
	}{
		{
			name:   "perfect ranking",
			scores: []float64{0.9, 0.8, 0.2, 0.1},
			labels: []int{1, 1, 0, 0},
			want:   1.0,
		},
		{
			name:   "inverted ranking",
			scores: []float64{0.1, 0.2, 0.8, 0.9},
			labels: []int{1, 1, 0, 0},
			// positives at ranks 3 and 4: (1/3 + 2/4) / 2
			want: (1.0/3 + 2.0/4) / 2,
		},
		{
			name:   "no positives",
			scores: []float64{0.5, 0.5},
			labels: []int{0, 0},
			want:   0,
		},
		{
			name:   "empty",
			scores: nil,
			labels: nil,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AveragePrecision(tt.scores, tt.labels), 1e-9)
		})
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []int
		want   float64
	}{
		{"perfect", []float64{0.9, 0.8, 0.2, 0.1}, []int{1, 1, 0, 0}, 1.0},
		{"inverted", []float64{0.1, 0.2, 0.8, 0.9}, []int{1, 1, 0, 0}, 0.0},
		{"all ties", []float64{0.5, 0.5, 0.5, 0.5}, []int{1, 1, 0, 0}, 0.5},
		{"single class", []float64{0.5, 0.6}, []int{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ROCAUC(tt.scores, tt.labels), 1e-9)
		})
	}
}

func TestEvaluate_ConfusionAndDerived(t *testing.T) {
	scores := []float64{0.9, 0.6, 0.4, 0.1}
	labels := []int{1, 0, 1, 0}

	rec := Evaluate(scores, labels)

	// threshold 0.5: preds = 1,1,0,0 -> tp=1 fp=1 fn=1 tn=1
	assert.Equal(t, [2][2]int{{1, 1}, {1, 1}}, rec.ConfusionMatrix)
	assert.InDelta(t, 0.5, rec.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, rec.F1, 1e-9)
	assert.Greater(t, rec.ROCAUC, 0.0)
}
