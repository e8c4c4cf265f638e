package http

import (
	"log/slog"
	"net/http"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/trips"
	"github.com/fedutinova/bikeshare/internal/validation"
	"github.com/go-chi/chi/v5"
)

type loadResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// loadData reads the configured CSV into the trip store. Workers see the
// store as not ready until it finishes.
func (h *Handlers) loadData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	src, err := trips.Open(ctx, h.Config.TripsCSVPath)
	if err != nil {
		slog.Error("failed to open trips dataset", "source", h.Config.TripsCSVPath, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Data was NOT added successfully")
		return
	}
	defer src.Close()

	n, err := h.Trips.Load(ctx, src)
	if err != nil {
		slog.Error("failed to load trips", "loaded", n, "error", err)
		status := http.StatusInternalServerError
		if common.IsUnavailable(err) {
			status = http.StatusServiceUnavailable
		}
		writeMessage(w, status, "Data was NOT added successfully")
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Message: "Data added successfully", Count: n})
}

// listData pages through trip records. Bad pagination is a plain-text 400.
func (h *Handlers) listData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, errs := validation.ParsePage(q.Get("offset"), q.Get("limit"))
	if len(errs) > 0 {
		http.Error(w, errs.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.Trips.Page(r.Context(), page.Offset, page.Limit)
	if err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	slog.Debug("listing trips", "offset", page.Offset, "limit", page.Limit, "returned", len(out))
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) clearData(w http.ResponseWriter, r *http.Request) {
	if err := h.Trips.Clear(r.Context()); err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	writeMessage(w, http.StatusOK, "Data deleted successfully")
}

func (h *Handlers) listTrips(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Trips.IDs(r.Context())
	if err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handlers) getTrip(w http.ResponseWriter, r *http.Request) {
	t, err := h.Trips.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) listBikes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Trips.BikeIDs(r.Context())
	if err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	if len(ids) == 0 {
		writeMessage(w, http.StatusOK, "Empty Database")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handlers) getBike(w http.ResponseWriter, r *http.Request) {
	out, err := h.Trips.TripsByBike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, msgTripNotFound)
		return
	}
	if len(out) == 0 {
		writeMessage(w, http.StatusNotFound, "bike_id not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
