package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerOpCountsOutcomes(t *testing.T) {
	m := New()
	m.LedgerOp("import", nil)
	m.LedgerOp("import", nil)
	m.LedgerOp("import", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerOps.WithLabelValues("import", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerOps.WithLabelValues("import", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LedgerOp("settle", nil)
		m.SoftDenied("merge")
		m.ImportRecords("friend", "created", 3)
		m.CascadeDeleted("expense", 2)
		m.ObserveRequest("GET", 200, time.Millisecond)
		m.SetWebsocketClients(1)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CascadeDeleted("expense", 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `splitbook_cascade_deleted_total{entity="expense"} 2`)
}
