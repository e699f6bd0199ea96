package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-triage/internal/app"
	"semantic-triage/internal/config"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/store"
	"semantic-triage/internal/table"
)

func newTestRouter(t *testing.T, factory embeddings.Factory) (http.Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	deps := app.Deps{
		Config:     config.Config{TopK: 8, Workers: 2, Partitions: 2, Engine: app.EngineLocal, MaxUploadSize: 1024 * 1024},
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewEncoder: factory,
		Model:      "hash-384",
		Store:      st,
	}
	d, err := app.NewDispatcher(deps)
	require.NoError(t, err)

	return newRouter(deps, embeddings.NewLazy(factory), d), st
}

func newTestServer(t *testing.T, factory embeddings.Factory) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	h, st := newTestRouter(t, factory)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, st
}

func hashFactory(context.Context) (embeddings.Encoder, error) {
	return embeddings.NewHashEncoder(0), nil
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestScoreHandler(t *testing.T) {
	srv, _ := newTestServer(t, hashFactory)

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "ranks records",
			body:           `{"texts":["disk full","authentication failed for admin","cold start"],"intents":["authentication failed"],"top_k":2}`,
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result struct {
					Records []struct {
						Index int     `json:"index"`
						Text  string  `json:"text"`
						Best  float32 `json:"best"`
					} `json:"records"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				require.Len(t, result.Records, 2)
				assert.Equal(t, 1, result.Records[0].Index)
				assert.Greater(t, result.Records[0].Best, result.Records[1].Best)
				assert.Equal(t, 0, result.Records[1].Index, "ties keep input order")
			},
		},
		{
			name:           "missing intents",
			body:           `{"texts":["disk full"]}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "blank text",
			body:           `{"texts":["  "],"intents":["timeout"]}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "malformed json",
			body:           `{"texts":`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "/api/score", tt.body)
			assert.Equal(t, tt.wantStatusCode, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestQAHandler(t *testing.T) {
	srv, _ := newTestServer(t, hashFactory)

	resp := post(t, srv, "/api/qa", `{"response":"Obu Eats plans meals","expected":"Obu Eats plans meals"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.InDelta(t, 1.0, result["similarity"], 1e-5)
}

func TestEncoderUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, func(context.Context) (embeddings.Encoder, error) {
		return nil, errors.New("model download failed")
	})
	resp := post(t, srv, "/api/qa", `{"response":"a","expected":"b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestJobLifecycle(t *testing.T) {
	srv, st := newTestServer(t, hashFactory)
	st.Put("logs", []table.Column{{Name: "message", Type: "text"}}, []table.Row{
		{"auth failed"}, {"timeout"}, {"cold start"},
	})

	resp := post(t, srv, "/api/intents", `{"intents":[{"name":"auth","text":"authentication failure"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, srv, "/api/jobs", `{"input_table":"logs","output_table":"logs_scored","text_column":"message","intents":[{"name":"auth"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep struct {
		JobID uuid.UUID `json:"job_id"`
		Rows  int       `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, 3, rep.Rows)

	got, err := http.Get(srv.URL + "/api/jobs/" + rep.JobID.String())
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	// The output table now exists.
	resp = post(t, srv, "/api/jobs", `{"input_table":"logs","output_table":"logs_scored","text_column":"message","intents":[{"text":"x"}]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestJobErrors(t *testing.T) {
	srv, _ := newTestServer(t, hashFactory)

	resp := post(t, srv, "/api/jobs", `{"input_table":"missing","output_table":"out","text_column":"message","intents":[{"text":"x"}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv, "/api/jobs", `{"input_table":"missing","output_table":"out","text_column":"message","intents":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got, err := http.Get(srv.URL + "/api/jobs/" + uuid.NewString())
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusNotFound, got.StatusCode)

	bad, err := http.Get(srv.URL + "/api/jobs/not-a-uuid")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func uploadLog(t *testing.T, srv *httptest.Server, filename, contentType string, content []byte, fields map[string][]string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, writer.WriteField(k, v))
		}
	}
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/api/triage", writer.FormDataContentType(), body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTriageHandler(t *testing.T) {
	srv, _ := newTestServer(t, hashFactory)
	logs := []byte("disk full\n\nauthentication failed for admin\ncold start\n")

	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
		fields      map[string][]string
		wantStatus  int
		wantTop     string
	}{
		{"text upload", "app.log", "text/plain", logs, map[string][]string{"intent": {"authentication failed"}, "top_k": {"1"}}, http.StatusOK, "authentication failed for admin"},
		{"extension fallback", "app.log", "", logs, map[string][]string{"intent": {"authentication failed"}}, http.StatusOK, "authentication failed for admin"},
		{"unsupported type", "app.png", "image/png", logs, map[string][]string{"intent": {"x"}}, http.StatusBadRequest, ""},
		{"no intents", "app.log", "text/plain", logs, nil, http.StatusBadRequest, ""},
		{"empty file", "app.log", "text/plain", []byte("\n \n"), map[string][]string{"intent": {"x"}}, http.StatusBadRequest, ""},
		{"bad top_k", "app.log", "text/plain", logs, map[string][]string{"intent": {"x"}, "top_k": {"many"}}, http.StatusBadRequest, ""},
		{"broken pdf", "report.pdf", "application/pdf", logs, map[string][]string{"intent": {"x"}}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := uploadLog(t, srv, tt.filename, tt.contentType, tt.content, tt.fields)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantTop == "" {
				return
			}
			var result struct {
				Lines   int `json:"lines"`
				Records []struct {
					Text string `json:"text"`
				} `json:"records"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, 3, result.Lines)
			require.NotEmpty(t, result.Records)
			assert.Equal(t, tt.wantTop, result.Records[0].Text)
		})
	}
}

func TestTriageHandlerTooLarge(t *testing.T) {
	h, _ := newTestRouter(t, hashFactory)
	big := bytes.Repeat([]byte("timeout\n"), 200*1024)

	req := httptest.NewRequest(http.MethodPost, "/api/triage", bytes.NewReader(big))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file too large")
}
