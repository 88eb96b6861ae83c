package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	return r
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := &HealthHandler{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	healthRouter(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"up"}`, w.Body.String())
}

func TestHealthHandler_Readyz(t *testing.T) {
	up := func(context.Context) error { return nil }
	h := &HealthHandler{deps: []dependency{
		{"postgres", up},
		{"redis", up},
		{"rabbitmq", up},
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	healthRouter(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Ready        bool              `json:"ready"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, "up", body.Dependencies["postgres"])
}

func TestHealthHandler_Readyz_ReportsEveryDownDependency(t *testing.T) {
	h := &HealthHandler{deps: []dependency{
		{"postgres", func(context.Context) error { return nil }},
		{"redis", func(context.Context) error { return errors.New("connection refused") }},
		{"rabbitmq", func(context.Context) error { return errors.New("connection closed") }},
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	healthRouter(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Ready        bool              `json:"ready"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, "up", body.Dependencies["postgres"])
	assert.Equal(t, "down: connection refused", body.Dependencies["redis"])
	assert.Equal(t, "down: connection closed", body.Dependencies["rabbitmq"])
}
