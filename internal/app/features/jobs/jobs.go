// internal/app/features/jobs/jobs.go
package jobsfeature

import (
	"context"
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/tasks"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Runner is the part of tasks.Runner the console uses.
type Runner interface {
	Jobs() []tasks.JobInfo
	RunOnce(ctx context.Context, name string) error
}

// Handler serves the background job console.
type Handler struct {
	runner Runner
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a jobs Handler.
func NewHandler(runner Runner, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, errLog: errLog, logger: logger}
}

// Routes mounts the console. Every handler requires an admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Use(requireAdmin)
	r.Get("/", h.list)
	r.Post("/{name}/run", h.run)
	return r
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authz.CanAccessAdminArea(authz.ActorFromRequest(r)) {
			jsonutil.Forbidden(w, "Admin access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JobVM is one registered job.
type JobVM struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Running  bool   `json:"running"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	infos := h.runner.Jobs()
	jobs := make([]JobVM, 0, len(infos))
	for _, j := range infos {
		jobs = append(jobs, JobVM{Name: j.Name, Interval: j.Interval.String(), Running: j.Running})
	}
	jsonutil.OK(w, map[string]any{"jobs": jobs})
}

// run executes a job synchronously on the request context.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.runner.RunOnce(r.Context(), name)
	switch {
	case errors.Is(err, tasks.ErrUnknownJob):
		jsonutil.NotFound(w, "Unknown job.")
	case err != nil:
		h.errLog.LogWithFields(r, "manual job run failed", err, zap.String("job", name))
		jsonutil.InternalError(w, "Job failed.")
	default:
		h.logger.Info("job run on demand", zap.String("job", name))
		jsonutil.OK(w, map[string]any{"job": name, "ok": true})
	}
}
