package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.VideosProcessed.WithLabelValues("Completed", "").Inc()
	m.Frames.WithLabelValues("recognized").Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Frames.WithLabelValues("recognized")))

	path := filepath.Join(t.TempDir(), "framevocab.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `framevocab_videos_processed_total{reason="",status="Completed"} 1`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SinkErrors.WithLabelValues("postgres").Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.SinkErrors.WithLabelValues("postgres")))
}
