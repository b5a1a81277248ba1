package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Registers(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollector()
	require.NoError(t, reg.Register(c))

	c.ObserveUpload(true, 10)
	c.ObserveUpload(false, 10)
	c.ObserveUpload(false, 5)
	c.ContentReclaimed()
	c.BlobOrphaned()
	c.RateLimited("upload")
	c.QuotaRejected()
	c.ObserveRequest("/api/files/", "200", 10*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.uploads.WithLabelValues("created")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.uploads.WithLabelValues("deduplicated")))
	assert.Equal(t, float64(15), testutil.ToFloat64(c.bytesSaved))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.rateLimited.WithLabelValues("upload")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
