package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinic/internal/auth/models"
	dErrors "clinic/pkg/domain-errors"
	"clinic/pkg/platform/httputil"
	"clinic/pkg/requestcontext"
)

// Service defines the auth operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, creds models.Credentials) (*models.RegisterResult, error)
	Login(ctx context.Context, creds models.Credentials) (*models.TokenResult, error)
}

// Handler serves the public registration and token endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the auth endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/token", h.HandleToken)
}

// HandleRegister handles POST /register with a JSON body.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.Credentials](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Register(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleToken handles POST /token with a form-encoded body.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	creds := models.Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}

	res, err := h.service.Login(ctx, creds)
	if err != nil {
		h.logger.WarnContext(ctx, "token request rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, res)
}
