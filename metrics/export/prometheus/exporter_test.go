package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/MrEthical07/saasAuth/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeSource struct {
	snapshot saasAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() saasAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenDisabled(t *testing.T) {
	exp := NewFromSource(fakeSource{snapshot: saasAuth.MetricsSnapshot{
		Counters:   map[saasAuth.MetricID]uint64{},
		Histograms: map[saasAuth.MetricID][]uint64{},
	}})

	require.Empty(t, exp.Render())
}

func TestRenderCountersAndCumulativeHistogram(t *testing.T) {
	exp := NewFromSource(fakeSource{
		snapshot: saasAuth.MetricsSnapshot{
			Counters: map[saasAuth.MetricID]uint64{
				saasAuth.MetricLoginSuccess: 7,
				saasAuth.MetricAbuseBanned:  1,
			},
			Histograms: map[saasAuth.MetricID][]uint64{
				saasAuth.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	require.Contains(t, out, "# TYPE saasauth_login_success_total counter\n")
	require.Contains(t, out, "saasauth_login_success_total 7\n")
	require.Contains(t, out, "saasauth_abuse_banned_total 1\n")
	require.Contains(t, out, "saasauth_login_failure_total 0\n")
	require.Contains(t, out, "# TYPE saasauth_resolve_latency_seconds histogram\n")
	require.Contains(t, out, `saasauth_resolve_latency_seconds_bucket{le="0.005"} 1`+"\n")
	require.Contains(t, out, `saasauth_resolve_latency_seconds_bucket{le="0.025"} 6`+"\n")
	require.Contains(t, out, `saasauth_resolve_latency_seconds_bucket{le="+Inf"} 36`+"\n")
	require.Contains(t, out, "saasauth_resolve_latency_seconds_count 36\n")
	require.Contains(t, out, "saasauth_audit_dropped_total 2\n")
}

func TestRenderSkipsDisabledHistogram(t *testing.T) {
	exp := NewFromSource(fakeSource{snapshot: saasAuth.MetricsSnapshot{
		Counters: map[saasAuth.MetricID]uint64{saasAuth.MetricLogout: 1},
	}})

	require.NotContains(t, exp.Render(), "saasauth_resolve_latency_seconds")
}

func TestHandlerFromEngine(t *testing.T) {
	cfg := saasAuth.DefaultConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Metrics.Enabled = true
	engine, err := saasAuth.New().WithConfig(cfg).WithDatabase(store.NewMemory()).Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Register(context.Background(), saasAuth.RegisterRequest{
		Username: "metrics@example.com",
		Password: "pw123456",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	require.Contains(t, rec.Body.String(), "saasauth_register_success_total 1\n")
	require.Contains(t, rec.Body.String(), "saasauth_session_created_total 1\n")
}

func TestEscapeHelp(t *testing.T) {
	require.Equal(t, `a\\b\nc`, escapeHelp("a\\b\nc"))
}

func BenchmarkRender(b *testing.B) {
	exp := NewFromSource(fakeSource{snapshot: saasAuth.MetricsSnapshot{
		Counters: map[saasAuth.MetricID]uint64{
			saasAuth.MetricLoginSuccess:   1000,
			saasAuth.MetricLoginFailure:   40,
			saasAuth.MetricSessionCreated: 800,
		},
		Histograms: map[saasAuth.MetricID][]uint64{
			saasAuth.MetricResolveLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})

	b.ReportAllocs()
	for b.Loop() {
		_ = exp.Render()
	}
}
