package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubProbe struct {
	name string
	err  error
}

func (p stubProbe) Name() string                  { return p.name }
func (p stubProbe) Check(_ context.Context) error { return p.err }

func TestHandleHealth_NoProbes(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{
		stubProbe{name: "database"},
		stubProbe{name: "weather"},
	}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)
	assert.Contains(t, w.Body.String(), `"weather"`)
}

func TestHandleHealth_UnhealthyProbe(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{
		stubProbe{name: "database"},
		stubProbe{name: "weather", err: errors.New("breaker open")},
	}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "breaker open")
}

func TestHandleHealth_PanickingProbeIsUnhealthy(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{panicProbe{}}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "probe panicked")
}

type panicProbe struct{}

func (panicProbe) Name() string                  { return "flaky" }
func (panicProbe) Check(_ context.Context) error { panic("nope") }
