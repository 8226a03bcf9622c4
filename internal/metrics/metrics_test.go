package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(SpendsTotal.WithLabelValues(OutcomeConflict))
	SpendsTotal.WithLabelValues(OutcomeConflict).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SpendsTotal.WithLabelValues(OutcomeConflict)))
}
