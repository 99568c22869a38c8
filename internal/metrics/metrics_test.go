package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("bytehot", reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	m.FilesChangedTotal.Inc()
	require.Equal(t, float64(1), counterValue(t, m.FilesChangedTotal))

	m.BytecodeRejectedTotal.WithLabelValues("STRUCTURAL_INCOMPATIBILITY").Inc()
	m.RedefinitionsFailed.WithLabelValues("UnsupportedSchemaChange").Inc()
	m.RollbacksTotal.WithLabelValues("success").Inc()

	m.ClassesQuarantinedActive.Set(0)
	m.ClassesQuarantinedActive.Inc()
	m.ClassesQuarantinedActive.Dec()
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("bytehot", reg)
	require.Panics(t, func() { New("bytehot", reg) })
}
