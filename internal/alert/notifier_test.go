package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/promote"
	"github.com/wonny/churn-mlops/pkg/httputil"
	"github.com/wonny/churn-mlops/pkg/logger"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *[][]byte) {
	t.Helper()

	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &bodies
}

func TestDriftDetected_PostsOnFail(t *testing.T) {
	server, bodies := captureServer(t, http.StatusOK)
	n := New(server.URL, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())

	report := &drift.Report{
		PSIByFeature:  map[string]float64{"sessions_7d": 0.4},
		OverallMaxPSI: 0.4,
		Status:        drift.StatusFail,
	}
	require.NoError(t, n.DriftDetected(context.Background(), report))

	require.Len(t, *bodies, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal((*bodies)[0], &payload))
	assert.Equal(t, "drift_fail", payload["event"])
	assert.Equal(t, "FAIL", payload["status"])
	assert.InDelta(t, 0.4, payload["overall_max_psi"], 1e-9)
}

func TestDriftDetected_SilentBelowFail(t *testing.T) {
	server, bodies := captureServer(t, http.StatusOK)
	n := New(server.URL, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())

	for _, status := range []drift.Status{drift.StatusOK, drift.StatusWarn} {
		report := &drift.Report{Status: status}
		require.NoError(t, n.DriftDetected(context.Background(), report))
	}
	assert.Empty(t, *bodies)
}

func TestNotifier_DisabledWithoutURL(t *testing.T) {
	n := New("", httputil.New(logger.NewNop()), logger.NewNop())

	assert.False(t, n.Enabled())
	assert.NoError(t, n.DriftDetected(context.Background(), &drift.Report{Status: drift.StatusFail}))
	assert.NoError(t, n.ModelPromoted(context.Background(), &promote.Record{}))
}

func TestModelPromoted_PostsRecord(t *testing.T) {
	server, bodies := captureServer(t, http.StatusOK)
	n := New(server.URL, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())

	record := &promote.Record{
		RunID:             "run-1",
		PromotedFromModel: "artifacts/models/churn_candidate_20260301T000000Z.gob",
		MetricUsed:        "pr_auc",
		Score:             0.91,
	}
	require.NoError(t, n.ModelPromoted(context.Background(), record))

	require.Len(t, *bodies, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal((*bodies)[0], &payload))
	assert.Equal(t, "model_promoted", payload["event"])
	assert.Equal(t, "pr_auc", payload["metric_used"])
}

func TestPost_ErrorOn4xx(t *testing.T) {
	server, _ := captureServer(t, http.StatusForbidden)
	n := New(server.URL, httputil.New(logger.NewNop()).DisableRetry(), logger.NewNop())

	err := n.DriftDetected(context.Background(), &drift.Report{Status: drift.StatusFail})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
