package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorRecordsAndExposes(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("/api/auth/login", "POST", 200, 15*time.Millisecond)
	c.RecordRequest("/api/auth/login", "POST", 401, 5*time.Millisecond)
	c.RecordProxy("ai", 502)
	c.RecordOAuth("google", "success")
	c.RecordLogin("invalid_credentials")

	body := scrape(t, c)

	require.Contains(t, body, `gateway_http_requests_total{method="POST",route="/api/auth/login",status="200"} 1`)
	require.Contains(t, body, `gateway_http_requests_total{method="POST",route="/api/auth/login",status="401"} 1`)
	require.Contains(t, body, `gateway_proxy_requests_total{status="502",upstream="ai"} 1`)
	require.Contains(t, body, `gateway_oauth_flows_total{outcome="success",provider="google"} 1`)
	require.Contains(t, body, `gateway_logins_total{outcome="invalid_credentials"} 1`)
	require.True(t, strings.Contains(body, "gateway_http_request_duration_seconds_bucket"))
}
