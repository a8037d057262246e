package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	req.Header.Set("X-Request-ID", "req-1")
	resp := httptest.NewRecorder()

	ok := DecodeRequest(resp, req, &target)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "invalid_json", body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Contains(t, body.Error.Message, "extra")
}

func TestDecodeRequestEmptyBody(t *testing.T) {
	var target map[string]string
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	resp := httptest.NewRecorder()
	require.False(t, DecodeRequest(resp, req, &target))
	assert.Contains(t, resp.Body.String(), "request body is required")
}

func TestPathParts(t *testing.T) {
	assert.Equal(t, []string{"abc", "actions", "process"}, PathParts("/api/hr/payroll/cycles/abc/actions/process/", "/api/hr/payroll/cycles/"))
	assert.Nil(t, PathParts("/api/hr/payroll/cycles/", "/api/hr/payroll/cycles/"))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"https://app.payaid.in"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/hr/employees", nil)
	req.Header.Set("Origin", "https://app.payaid.in")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "https://app.payaid.in", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusTeapot, resp.Code)
}
