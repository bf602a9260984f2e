// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the facility service.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/Shivanand-hulikatti/parking-console/internal/repository"
	"github.com/Shivanand-hulikatti/parking-console/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 10 << 20

// FacilityHandler holds all HTTP handlers for the parking console API.
type FacilityHandler struct {
	svc *service.FacilityService
	now func() time.Time
}

// NewFacilityHandler constructs a FacilityHandler.
func NewFacilityHandler(svc *service.FacilityService) *FacilityHandler {
	return &FacilityHandler{svc: svc, now: time.Now}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, repository.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "parking is full, no spots available")
	case errors.Is(err, repository.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "ticket is already checked out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Tickets ──────────────────────────────────────────────────────────────────

// CheckIn handles POST /tickets
// Admits a vehicle and returns its new ticket.
func (h *FacilityHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req model.CheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	class, err := model.ParseVehicleClass(req.VehicleClass)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.svc.CheckIn(r.Context(), req.Plate, class, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

// ListTickets handles GET /tickets
// ?status=active|completed filters by lifecycle, ?plate= searches by plate.
// Without either, every ticket is returned. Most recent first.
func (h *FacilityHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	var (
		tickets []model.Ticket
		err     error
	)
	q := r.URL.Query()
	switch {
	case q.Get("plate") != "":
		tickets, err = h.svc.FindByPlate(r.Context(), q.Get("plate"))
	case strings.EqualFold(q.Get("status"), string(model.StatusActive)):
		tickets, err = h.svc.ListActive(r.Context())
	case strings.EqualFold(q.Get("status"), string(model.StatusCompleted)):
		tickets, err = h.svc.ListCompleted(r.Context())
	case q.Get("status") == "":
		var snap model.Snapshot
		snap, err = h.svc.Snapshot(r.Context(), h.now())
		tickets = snap.Tickets
	default:
		writeError(w, http.StatusBadRequest, "status must be active or completed")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if tickets == nil {
		tickets = []model.Ticket{}
	}

	writeJSON(w, http.StatusOK, tickets)
}

// GetTicket handles GET /tickets/{id}
func (h *FacilityHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// QuoteTicket handles GET /tickets/{id}/quote
// Previews the checkout fee so the operator can confirm before committing.
func (h *FacilityHandler) QuoteTicket(w http.ResponseWriter, r *http.Request) {
	quote, err := h.svc.Quote(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// CheckOut handles POST /tickets/{id}/checkout
// Closes the ticket and charges the fee.
func (h *FacilityHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.CheckOut(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

// Stats handles GET /stats
func (h *FacilityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Rates handles GET /rates
func (h *FacilityHandler) Rates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Rates())
}

// ─── External services ────────────────────────────────────────────────────────

// Recognize handles POST /recognize
// Accepts a raw image body, a multipart "image" field, or JSON with
// image_base64, and returns a check-in suggestion when one is found.
func (h *FacilityHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image is empty")
		return
	}

	sug, ok := h.svc.Suggest(r.Context(), image)
	if !ok {
		writeJSON(w, http.StatusOK, model.RecognizeResponse{
			Message: "Could not detect vehicle info clearly. Please try again or enter manually.",
		})
		return
	}
	writeJSON(w, http.StatusOK, model.RecognizeResponse{Found: true, Suggestion: sug})
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)

	case mediaType == "application/json":
		var req model.RecognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		// Browsers send data URLs; keep only the payload.
		data := req.ImageBase64
		if i := strings.Index(data, ";base64,"); i >= 0 {
			data = data[i+len(";base64,"):]
		}
		return base64.StdEncoding.DecodeString(data)

	default:
		return io.ReadAll(r.Body)
	}
}

// Ask handles POST /assistant
// Answers a free-text question about the current facility data.
func (h *FacilityHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.Ask(r.Context(), req.Question, h.now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
