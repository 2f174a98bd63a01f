// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/ephemera/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Run("records status code", func(t *testing.T) {
		for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusGone, http.StatusInternalServerError} {
			handler := PrometheusMetrics(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
			})
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/test", nil))
			if rec.Code != code {
				t.Errorf("status = %d, want %d", rec.Code, code)
			}
		}
	})

	t.Run("defaults to 200 when WriteHeader not called", func(t *testing.T) {
		var captured *metricsResponseWriter
		handler := PrometheusMetrics(func(w http.ResponseWriter, _ *http.Request) {
			captured = w.(*metricsResponseWriter)
			_, _ = w.Write([]byte("ok"))
		})
		handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if captured.statusCode != http.StatusOK {
			t.Errorf("statusCode = %d", captured.statusCode)
		}
	})
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return PrometheusMetrics(next.ServeHTTP) })
	r.Get("/messages/image/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/messages/image/{id}", "410")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/messages/image/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("pattern counter delta = %v, want 3", got)
	}
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
		rw.WriteHeader(http.StatusNotFound)
		rw.WriteHeader(http.StatusOK)
		if rw.statusCode != http.StatusNotFound {
			t.Errorf("statusCode = %d", rw.statusCode)
		}
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}
		if _, _, err := rw.Hijack(); err == nil {
			t.Error("Hijack() on recorder should fail")
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := &metricsResponseWriter{ResponseWriter: rec}
		if rw.Unwrap() != rec {
			t.Error("Unwrap() returned a different writer")
		}
	})
}
