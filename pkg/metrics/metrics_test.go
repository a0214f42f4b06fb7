package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConstruction(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveConstruction("keycloak", 10*time.Millisecond, nil)
	m.ObserveConstruction("keycloak", 5*time.Millisecond, errors.New("boom"))
	m.ObserveConstruction("keycloak", 5*time.Millisecond, errors.New("boom"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.DecoderConstructions.WithLabelValues("keycloak", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.DecoderConstructions.WithLabelValues("keycloak", "failure")), 0)
}

func TestObserveAuthenticationAndGauge(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAuthentication("bearer", OutcomeAuthenticated)
	m.ObserveAuthentication("bearer", OutcomeUnauthenticated)
	m.ObserveAuthentication("bearer", OutcomeUnauthenticated)
	m.SetCached(3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Authentications.WithLabelValues("bearer", OutcomeAuthenticated)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Authentications.WithLabelValues("bearer", OutcomeUnauthenticated)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.DecodersCached), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveConstruction("r", time.Second, nil)
		m.ObserveAuthentication("bearer", OutcomeError)
		m.SetCached(1)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAuthentication("login", OutcomeAuthenticated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ssobridge_authentications_total{mode="login",outcome="authenticated"} 1`)
}
