package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fedutinova/bikeshare/internal/config"
	"github.com/fedutinova/bikeshare/internal/job"
	"github.com/fedutinova/bikeshare/internal/storage"
	"github.com/fedutinova/bikeshare/internal/trips"
	"github.com/fedutinova/bikeshare/internal/validation"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// TripStore is the record store behind the data, trips and bikes routes.
type TripStore interface {
	Load(ctx context.Context, r io.Reader) (int, error)
	Page(ctx context.Context, offset, limit int) ([]trips.Trip, error)
	Clear(ctx context.Context) error
	IDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*trips.Trip, error)
	BikeIDs(ctx context.Context) ([]string, error)
	TripsByBike(ctx context.Context, bikeID string) ([]trips.Trip, error)
	Ready(ctx context.Context) (bool, error)
}

// QueueStats reports the job backlog.
type QueueStats interface {
	Len(ctx context.Context) (int64, error)
}

// DeadLetterCounter is implemented by queues that park undeliverable entries.
type DeadLetterCounter interface {
	DeadLetterCount(ctx context.Context) (int64, error)
}

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Jobs    *job.Manager
	Trips   TripStore
	Storage storage.Storage
	Queue   QueueStats
	Checks  map[string]Pinger
	Config  config.Config
}

const (
	msgJobNotFound  = "job_id not found"
	msgTripNotFound = "trip_id not found"
	msgNotFinished  = "job is not finished yet, try again in a minute"
)

// Routes registers every route that completes quickly.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/help", h.help)
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	submit := r
	if h.Config.SubmitRateLimit > 0 {
		submit = r.With(httprate.LimitByIP(h.Config.SubmitRateLimit, time.Minute))
	}
	submit.Post("/jobs", h.submitJob)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)
	r.Get("/download/{id}", h.download)

	r.Get("/data", h.listData)
	r.Delete("/data", h.clearData)
	r.Get("/trips", h.listTrips)
	r.Get("/trips/{id}", h.getTrip)
	r.Get("/bikes", h.listBikes)
	r.Get("/bikes/{id}", h.getBike)
}

// BulkRoutes registers routes that may outlive a request timeout.
func (h *Handlers) BulkRoutes(r chi.Router) {
	r.Post("/data", h.loadData)
}

func (h *Handlers) submitJob(w http.ResponseWriter, r *http.Request) {
	var req validation.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid parameters, must pass start_date and end_date")
		return
	}
	if errs := validation.ValidateSubmit(req); len(errs) > 0 {
		slog.Warn("invalid job submission", "errors", errs.Error())
		writeMessage(w, http.StatusBadRequest, errs.Error())
		return
	}

	j, err := h.Jobs.Submit(r.Context(), req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err, msgJobNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Jobs.ListIDs(r.Context())
	if err != nil {
		writeError(w, r, err, msgJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.Jobs.Get(r.Context(), id)
	if err != nil {
		slog.Debug("job lookup failed", "job_id", id, "error", err)
		writeError(w, r, err, msgJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// download serves the chart of a complete job as an attachment.
func (h *Handlers) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.Jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, msgJobNotFound)
		return
	}

	switch j.Status {
	case job.StatusComplete:
	case job.StatusFailed:
		writeMessage(w, http.StatusConflict, fmt.Sprintf("job failed: %s", j.Error))
		return
	default:
		writeMessage(w, http.StatusAccepted, msgNotFinished)
		return
	}

	a, err := h.Storage.GetArtifact(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "result not found for job_id")
		return
	}

	detected := mimetype.Detect(a.Data)
	contentType := a.ContentType
	if contentType == "" {
		contentType = detected.String()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s%s", id, detected.Extension()))
	w.Header().Set("Content-Length", fmt.Sprint(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		slog.Error("failed to write artifact", "job_id", id, "error", err)
	}
}

func (h *Handlers) help(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, helpText)
}

const helpText = `Bike share trips API

  POST   /data                 load the trips dataset
  GET    /data?offset=&limit=  list trip records (offset and limit are non-negative integers)
  DELETE /data                 delete every trip record

  GET    /trips                list trip IDs
  GET    /trips/{id}           one trip record
  GET    /bikes                list bicycle IDs
  GET    /bikes/{id}           trips ridden on one bicycle

  POST   /jobs                 submit a job: {"start_date": "MM/DD/YYYY", "end_date": "MM/DD/YYYY"}
  GET    /jobs                 list job IDs
  GET    /jobs/{id}            job record and status
  GET    /download/{id}        chart of trips per day or month for a complete job

  GET    /health               liveness
  GET    /ready                readiness of the backing stores
  GET    /help                 this text
`
