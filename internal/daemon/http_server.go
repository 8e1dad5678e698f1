package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// Handler returns the daemon's HTTP routes.
func (d *Daemon) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(d.logger))

	r.Get("/healthz", d.handleHealth)
	r.Handle("/metrics", d.recorder.HTTPHandler())
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", d.handleListRuns)
		r.Post("/", d.handleTrigger)
		r.Get("/{id}", d.handleGetRun)
	})
	return r
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (d *Daemon) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if d.store == nil {
		d.writeError(w, r, errHistoryDisabled)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			d.writeError(w, r, errors.ValidationError("limit must be a positive integer").
				WithContext("limit", raw).
				Build())
			return
		}
		limit = n
	}
	runs, err := d.store.ListRuns(r.Context(), limit)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []state.Run{}
	}
	d.writeJSON(w, http.StatusOK, runs)
}

func (d *Daemon) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if d.store == nil {
		d.writeError(w, r, errHistoryDisabled)
		return
	}
	detail, err := d.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	d.writeJSON(w, http.StatusOK, detail)
}

func (d *Daemon) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if err := d.Trigger(); err != nil {
		d.writeError(w, r, err)
		return
	}
	d.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

var errHistoryDisabled = errors.NewError(errors.CategoryNotFound, "run history is disabled").Build()

func (d *Daemon) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Error("Failed to encode response", logfields.Error(err))
	}
}

func (d *Daemon) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.NewHTTPErrorAdapter(d.logger).WriteErrorResponse(w, r, err)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}
