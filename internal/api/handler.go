package api

import (
	"context"
	"net/http"
	"time"

	"dogsitter/internal/logging"
	"dogsitter/internal/service"

	"github.com/rs/zerolog"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Users    *service.UserService
	Animals  *service.AnimalService
	Sitters  *service.SitterService
	Catalog  *service.CatalogService
	Bookings *service.BookingService
	Reviews  *service.ReviewService
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers of the REST API.
type Handler struct {
	svc    Services
	db     Pinger
	logger *zerolog.Logger
}

func NewHandler(svc Services, db Pinger, logger *zerolog.Logger) *Handler {
	return &Handler{svc: svc, db: db, logger: logging.Component(logger, "http")}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, h.logger, err)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
