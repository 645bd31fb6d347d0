package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type kindErr string

func (k kindErr) Error() string     { return string(k) }
func (k kindErr) ErrorKind() string { return string(k) }

func TestObserveLabelsByKind(t *testing.T) {
	m := New()
	start := time.Now()
	m.Observe("accept", start, nil)
	m.Observe("accept", start, kindErr("not_verified"))
	m.Observe("accept", start, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("accept", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("accept", "not_verified")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("accept", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("x", time.Now(), nil)
	m.RewardDistributed(3)
	m.AccessCheck(true, "cache")
	m.VerificationTransition("T", "started")
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RewardDistributed(2)
	m.AccessCheck(true, "local")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "earlyadopters_reward_recipients_total 2")
	require.Contains(t, string(body), `earlyadopters_chat_access_checks_total{result="allowed",source="local"} 1`)
}
