package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-triage/internal/app"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scoreRequest struct {
	Texts []string `json:"texts" validate:"required,min=1,dive,required"`
	TopK  int      `json:"top_k" validate:"gte=0"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"texts":["timeout"],"top_k":2}`, false},
		{"empty texts", `{"texts":[]}`, true},
		{"blank text", `{"texts":[""]}`, true},
		{"negative top_k", `{"texts":["a"],"top_k":-1}`, true},
		{"unknown field", `{"texts":["a"],"k":1}`, true},
		{"malformed", `{"texts":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v scoreRequest
			err := DecodeJSON(req, &v)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := Validator.Struct(&scoreRequest{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	ValidationError(discardLogger(), rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body["error"])
	assert.NotEmpty(t, body["fields"])

	rec = httptest.NewRecorder()
	ValidationError(discardLogger(), rec, errors.New("decode body: EOF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecovererAndHealth(t *testing.T) {
	r := NewRouter(discardLogger())
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Get("/healthz", HealthHandler(app.Deps{Log: discardLogger()}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
