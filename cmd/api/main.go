package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"semantic-triage/internal/app"
	"semantic-triage/internal/dispatch"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/httputil"
	"semantic-triage/internal/pipeline"
	"semantic-triage/internal/records"
	"semantic-triage/internal/store"
	"semantic-triage/internal/table"
)

type scoreRequest struct {
	Texts   []string `json:"texts" validate:"required,min=1,dive,required"`
	Intents []string `json:"intents" validate:"required,min=1,dive,required"`
	TopK    int      `json:"top_k" validate:"gte=0"`
}

type qaRequest struct {
	Response string `json:"response" validate:"required"`
	Expected string `json:"expected" validate:"required"`
}

type intentsRequest struct {
	Intents []struct {
		Name string `json:"name" validate:"required"`
		Text string `json:"text" validate:"required"`
	} `json:"intents" validate:"required,min=1,dive"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, "api", app.WithEngine())
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	d, err := app.NewDispatcher(deps)
	if err != nil {
		deps.Log.Error("failed to build dispatcher", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps, embeddings.NewLazy(deps.NewEncoder), d),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.Log.Info("api listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		deps.Log.Error("server failed", "err", err)
	}
}

// newRouter mounts the API. enc is the process-wide encoder shared by the
// scoring endpoints.
func newRouter(deps app.Deps, enc *embeddings.Lazy, d *dispatch.Dispatcher) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/score", scoreHandler(deps, enc))
	r.Post("/api/triage", triageHandler(deps, enc))
	r.Post("/api/qa", qaHandler(deps, enc))
	r.Post("/api/intents", intentsHandler(deps, enc))
	r.Post("/api/jobs", createJobHandler(deps, d))
	r.Get("/api/jobs/{id}", getJobHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))
	return r
}

func scoreHandler(deps app.Deps, enc *embeddings.Lazy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		if req.TopK == 0 {
			req.TopK = deps.Config.TopK
		}

		p, err := newPipeline(r.Context(), deps, enc)
		if err != nil {
			httputil.Fail(deps.Log, w, "encoder unavailable", err, http.StatusServiceUnavailable)
			return
		}
		texts := records.TruncateAll(req.Texts, deps.Config.MaxTextTokens)
		res, err := p.Run(r.Context(), texts, pipeline.NamedIntents(req.Intents))
		if err != nil {
			httputil.Fail(deps.Log, w, "scoring failed", err, statusFor(err))
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"intents": res.Targets.Intents,
			"records": res.Top(req.TopK),
		})
	}
}

// triageHandler scores an uploaded log file line by line. Form fields:
// file (txt, log or pdf), intent (repeatable), top_k.
func triageHandler(deps app.Deps, enc *embeddings.Lazy) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		// Validate file size before parsing
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		kind, ok := uploadKind(header.Filename, header.Header.Get("Content-Type"))
		if !ok {
			httputil.Fail(deps.Log, w, "unsupported file type (only TXT, LOG and PDF allowed)", nil, http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusBadRequest)
			return
		}
		raw := string(content)
		if kind == "pdf" {
			if raw, err = records.FromPDF(content); err != nil {
				httputil.Fail(deps.Log, w, "failed to read pdf", err, http.StatusBadRequest)
				return
			}
		}

		lines := records.TruncateAll(records.SplitLines(raw), deps.Config.MaxTextTokens)
		if len(lines) == 0 {
			httputil.Fail(deps.Log, w, "file has no log lines", nil, http.StatusBadRequest)
			return
		}
		intents := r.MultipartForm.Value["intent"]
		if len(intents) == 0 {
			intents = deps.Config.TargetIntents
		}
		if len(intents) == 0 {
			httputil.Fail(deps.Log, w, "at least one intent is required", nil, http.StatusBadRequest)
			return
		}
		topK := deps.Config.TopK
		if v := r.FormValue("top_k"); v != "" {
			if topK, err = strconv.Atoi(v); err != nil || topK < 0 {
				httputil.Fail(deps.Log, w, "invalid top_k", err, http.StatusBadRequest)
				return
			}
		}

		p, err := newPipeline(r.Context(), deps, enc)
		if err != nil {
			httputil.Fail(deps.Log, w, "encoder unavailable", err, http.StatusServiceUnavailable)
			return
		}
		res, err := p.Run(r.Context(), lines, pipeline.NamedIntents(intents))
		if err != nil {
			httputil.Fail(deps.Log, w, "scoring failed", err, statusFor(err))
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"filename": header.Filename,
			"lines":    len(lines),
			"intents":  res.Targets.Intents,
			"records":  res.Top(topK),
		})
	}
}

// uploadKind classifies an upload as "text" or "pdf", falling back to the
// file extension when Content-Type is missing.
func uploadKind(filename, contentType string) (string, bool) {
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".txt", ".log":
			return "text", true
		case ".pdf":
			return "pdf", true
		default:
			return "", false
		}
	}
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "text/plain":
		return "text", true
	case "application/pdf":
		return "pdf", true
	default:
		return "", false
	}
}

func qaHandler(deps app.Deps, enc *embeddings.Lazy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req qaRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		p, err := newPipeline(r.Context(), deps, enc)
		if err != nil {
			httputil.Fail(deps.Log, w, "encoder unavailable", err, http.StatusServiceUnavailable)
			return
		}
		maxTokens := deps.Config.MaxTextTokens
		res, err := p.Run(r.Context(),
			[]string{records.Truncate(req.Response, maxTokens)},
			[]pipeline.Intent{{Name: "expected", Text: records.Truncate(req.Expected, maxTokens)}},
		)
		if err != nil {
			httputil.Fail(deps.Log, w, "scoring failed", err, statusFor(err))
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"similarity": res.Records[0].Best,
		})
	}
}

func intentsHandler(deps app.Deps, enc *embeddings.Lazy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req intentsRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		e, err := enc.Get(context.WithoutCancel(r.Context()))
		if err != nil {
			httputil.Fail(deps.Log, w, "encoder unavailable", err, http.StatusServiceUnavailable)
			return
		}

		intents := make([]dispatch.Intent, len(req.Intents))
		for i, in := range req.Intents {
			intents[i] = dispatch.Intent{Name: in.Name, Text: in.Text}
		}
		if err := dispatch.RegisterIntents(r.Context(), deps.Store, e, deps.Model, intents); err != nil {
			httputil.Fail(deps.Log, w, "failed to register intents", err, statusFor(err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, map[string]any{
			"registered": len(intents),
			"model":      deps.Model,
		})
	}
}

func createJobHandler(deps app.Deps, d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		intents, err := dispatch.ResolveIntents(r.Context(), deps.Store, deps.Model, req.Intents)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to resolve intents", err, http.StatusInternalServerError)
			return
		}
		req.Intents = intents

		rep, err := d.Run(r.Context(), req)
		if err != nil {
			httputil.Fail(deps.Log, w, "scoring job failed", err, statusFor(err))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rep)
	}
}

func getJobHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid job id", err, http.StatusBadRequest)
			return
		}
		job, err := deps.Store.GetJob(r.Context(), id)
		if err != nil {
			httputil.Fail(deps.Log, w, "job lookup failed", err, statusFor(err))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, job)
	}
}

// newPipeline loads the encoder detached from ctx: a load failure is
// remembered, so a cancelled request must not poison it.
func newPipeline(ctx context.Context, deps app.Deps, enc *embeddings.Lazy) (*pipeline.Pipeline, error) {
	e, err := enc.Get(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	return pipeline.New(e, deps.Log), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, embeddings.ErrEmptyText),
		errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, table.ErrColumnNotFound):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrTableNotFound),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrTableExists),
		errors.Is(err, dispatch.ErrColumnConflict):
		return http.StatusConflict
	case errors.Is(err, embeddings.ErrEncoderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
