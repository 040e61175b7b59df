package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("buy", nil, time.Millisecond)
	m.ObserveOperation("buy", domain.ErrSlippageExceeded, time.Millisecond)
	m.ObserveOperation("buy", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("buy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("buy", "economic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("buy", "internal")))
}

func TestObserveChangeSet(t *testing.T) {
	m := New()
	m.ObserveChangeSet(domain.ChangeSet{
		Seq:    7,
		Events: []domain.Event{{Type: domain.EventSharesBought}, {Type: domain.EventKingChanged}},
		Trades: []domain.Trade{{
			Side:  domain.TradeSideBuy,
			Split: domain.FeeSplit{Gross: 100, Platform: 2, Creator: 1, King: 1, Net: 96},
		}},
	})

	assert.Equal(t, 7.0, testutil.ToFloat64(m.ledgerSeq))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.volume.WithLabelValues("buy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fees.WithLabelValues("platform")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("king_changed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("sell", nil, 0)
		m.ObserveChangeSet(domain.ChangeSet{Seq: 1})
		m.SideChannelFailed("redis")
		m.WSClientConnected()
		m.ObserveHTTP("GET", 200)
	})
}

func TestHandlerServesText(t *testing.T) {
	m := New()
	m.SideChannelFailed("postgres")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `answermarket_side_channel_failures_total{channel="postgres"} 1`)
}
