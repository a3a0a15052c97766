package api

import (
	"net/http"
	"strings"

	"dogsitter/internal/models"
	"dogsitter/internal/service"
)

func (h *Handler) listAnimals(w http.ResponseWriter, r *http.Request) {
	animals, err := h.svc.Animals.List(r.Context(), actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, animals)
}

func (h *Handler) createAnimal(w http.ResponseWriter, r *http.Request) {
	var in service.AnimalInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	animal, err := h.svc.Animals.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, animal)
}

func (h *Handler) searchAnimals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := models.AnimalFilter{
		Type:   strings.TrimSpace(q.Get("type")),
		Size:   strings.TrimSpace(q.Get("size")),
		Search: q.Get("q"),
		Limit:  limit,
	}
	animals, err := h.svc.Animals.Search(r.Context(), actorOf(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, animals)
}

func (h *Handler) getAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "animalID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	animal, err := h.svc.Animals.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, animal)
}

func (h *Handler) updateAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "animalID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd service.AnimalUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	animal, err := h.svc.Animals.Update(r.Context(), actorOf(r), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, animal)
}

func (h *Handler) deleteAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "animalID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Animals.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
