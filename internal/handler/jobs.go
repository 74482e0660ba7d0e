package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/service"
)

// JobService is what JobHandler needs from the job service
type JobService interface {
	ListJobs(ctx context.Context, pageNumber, pageSize int, includeOwner bool) (*model.PagedJobs, error)
	SearchJobs(ctx context.Context, keyword string, includeOwner bool) ([]model.Job, error)
	GetJob(ctx context.Context, id string, includeOwner bool) (*model.Job, error)
	CreateJob(ctx context.Context, userID string, req model.JobRequest) (*model.Job, error)
	UpdateJob(ctx context.Context, userID, id string, req model.JobRequest) (*model.Job, error)
	DeleteJob(ctx context.Context, userID, id string) error
}

// JobHandler serves the /jobs endpoints. Every route expects the auth
// middleware to have placed a principal on the context.
type JobHandler struct {
	jobService JobService
	logger     *slog.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{jobService: jobService, logger: logger}
}

// List handles GET /jobs/all
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pageNumber, err := intParam(q.Get("pageNumber"), model.MinPageNumber)
	if err != nil {
		writeServiceError(w, r, h.logger, service.ErrInvalidPageNumber)
		return
	}
	pageSize, err := intParam(q.Get("pageSize"), model.DefaultPageSize)
	if err != nil {
		writeServiceError(w, r, h.logger, service.ErrInvalidPageSize)
		return
	}
	includeUser, ok := boolParam(w, q.Get("includeUser"))
	if !ok {
		return
	}

	page, err := h.jobService.ListJobs(r.Context(), pageNumber, pageSize, includeUser)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WritePage(w, page)
}

// Search handles GET /jobs/search
func (h *JobHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeUser, ok := boolParam(w, q.Get("includeUser"))
	if !ok {
		return
	}

	jobs, err := h.jobService.SearchJobs(r.Context(), q.Get("keyword"), includeUser)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteData(w, http.StatusOK, model.JobViews(jobs))
}

// Get handles GET /jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	includeUser, ok := boolParam(w, r.URL.Query().Get("includeUser"))
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(r.Context(), r.PathValue("id"), includeUser)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteData(w, http.StatusOK, job.ToView())
}

// Create handles POST /jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.JobRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/jobs/"+job.ID)
	WriteMessage(w, http.StatusCreated, "job created", job.ToView())
}

// Update handles PUT /jobs/{id}
func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.JobRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	job, err := h.jobService.UpdateJob(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteMessage(w, http.StatusOK, "job updated", job.ToView())
}

// Delete handles DELETE /jobs/{id}
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.jobService.DeleteJob(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteMessage(w, http.StatusOK, "job deleted", nil)
}

// intParam parses an optional integer query parameter. Range checks are
// left to the service.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// boolParam parses the optional includeUser flag; absent means false
func boolParam(w http.ResponseWriter, raw string) (bool, bool) {
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "includeUser", Message: "includeUser must be true or false"},
		}))
		return false, false
	}
	return v, true
}
