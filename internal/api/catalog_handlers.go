package api

import (
	"net/http"

	"dogsitter/internal/models"
	"dogsitter/internal/service"
)

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	services, err := h.svc.Catalog.List(r.Context(), actorOf(r), includeInactive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Price       models.Money `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Create(r.Context(), actorOf(r), models.Service{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd service.ServiceUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.svc.Catalog.Update(r.Context(), actorOf(r), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) deactivateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "serviceID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Catalog.Deactivate(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
