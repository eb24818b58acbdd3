package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesSnapshot(t *testing.T) {
	m := New()
	m.Inc(SessionAllocated)
	m.Add(RelayForwarded, 3)
	m.Inc(`quote"back\slash`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(m).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "# TYPE aero_webrtc_pairing_relay_events_total counter") {
		t.Fatalf("missing TYPE header: %s", body)
	}
	if !strings.Contains(body, `aero_webrtc_pairing_relay_events_total{event="relay_forwarded"} 3`) {
		t.Fatalf("missing relay_forwarded counter: %s", body)
	}
	if !strings.Contains(body, `aero_webrtc_pairing_relay_events_total{event="session_allocated"} 1`) {
		t.Fatalf("missing session_allocated counter: %s", body)
	}
	if !strings.Contains(body, `aero_webrtc_pairing_relay_events_total{event="quote\"back\\slash"} 1`) {
		t.Fatalf("missing escaped counter: %s", body)
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	rr := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Inc("x")
	if got := m.Get("x"); got != 0 {
		t.Fatalf("Get on nil metrics=%d, want 0", got)
	}
	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot on nil metrics=%v, want empty", snap)
	}
}
