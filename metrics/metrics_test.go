package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"novytek/api/models"
)

func TestCollectorTrackingMetrics(t *testing.T) {
	c := NewCollector("novytek")

	c.VisitRecorded()
	c.VisitRecorded()
	c.ConversionRecorded(models.ConversionWhatsApp)
	c.TrackingFailure("insert_visit")
	c.ActivePageViews(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.VisitsRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ConversionsRecorded.WithLabelValues("whatsapp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TrackingFailures.WithLabelValues("insert_visit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.OpenPageViews))

	families, err := c.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
