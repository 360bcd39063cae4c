package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinic/internal/record/models"
	dErrors "clinic/pkg/domain-errors"
	"clinic/pkg/platform/httputil"
	"clinic/pkg/requestcontext"
)

// Service defines the record operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, attrs models.Attributes) (*models.PatientRecord, error)
	Recommendation(ctx context.Context, id int64) (*models.RecommendationView, error)
	List(ctx context.Context) iter.Seq2[*models.PatientRecord, error]
}

// Handler serves the authenticated record endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the record endpoints. Callers wrap r with authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evaluate", h.HandleEvaluate)
	r.Get("/recommendation/{id}", h.HandleRecommendation)
	r.Get("/patients", h.HandleList)
}

// HandleEvaluate creates a record and returns it with the derived fields.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Create(ctx, req.Attributes())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create patient record",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

// HandleRecommendation returns the cached or stored recommendation for a patient.
func (h *Handler) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "patient id must be a positive integer"))
		return
	}

	view, err := h.service.Recommendation(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to read recommendation",
				"request_id", requestID,
				"patient_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleList returns every stored record.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	out := []*models.PatientRecord{}
	for record, err := range h.service.List(ctx) {
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list patient records",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		out = append(out, record)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
