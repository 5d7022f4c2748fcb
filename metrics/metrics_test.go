package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/learnlink-client/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordRequest("GET", 200, 10*time.Millisecond)
	c.RecordRequest("GET", 401, 5*time.Millisecond)
	c.RecordRequest("GET", 200, 8*time.Millisecond)
	c.RecordRefresh(true)
	c.RecordRefresh(false)
	c.RecordRefresh(true)
	c.RecordReconnect()
	c.RecordEvent("MissionCreated")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "|" + l.GetValue()
			}
			if m.GetCounter() != nil {
				values[key] = m.GetCounter().GetValue()
			}
		}
	}
	require.Len(t, requestSeries(families), 2, "one series per method/status pair")
	require.Equal(t, 2.0, values["learnlink_client_requests_total|GET|200"])
	require.Equal(t, 1.0, values["learnlink_client_requests_total|GET|401"])
	require.Equal(t, 2.0, values["learnlink_client_token_refreshes_total|success"])
	require.Equal(t, 1.0, values["learnlink_client_token_refreshes_total|failure"])
	require.Equal(t, 1.0, values["learnlink_client_hub_reconnects_total"])
	require.Equal(t, 1.0, values["learnlink_client_hub_events_total|MissionCreated"])
}

func requestSeries(families []*dto.MetricFamily) []*dto.Metric {
	for _, mf := range families {
		if mf.GetName() == "learnlink_client_requests_total" {
			return mf.GetMetric()
		}
	}
	return nil
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordReconnect()

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "learnlink_client_hub_reconnects_total 1")
}
