package api

import (
	"errors"
	"net/http"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
	"dogsitter/internal/service"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Users.Register(r.Context(), in)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.GetProfile(r.Context(), actorOf(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd service.ProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.svc.Users.UpdateProfile(r.Context(), actorOf(r).UserID, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Users.ChangePassword(r.Context(), actorOf(r).UserID, in.CurrentPassword, in.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deactivateMe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.Deactivate(r.Context(), actorOf(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.Delete(r.Context(), actorOf(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Users.Stats(r.Context(), actorOf(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) myUpcoming(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.Users.Upcoming(r.Context(), actorOf(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) myHistory(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bookings, err := h.svc.Users.History(r.Context(), actorOf(r).UserID, days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) myMonthly(w http.ResponseWriter, r *http.Request) {
	months, err := h.svc.Users.Monthly(r.Context(), actorOf(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

func (h *Handler) listPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.svc.Users.ListPhotos(r.Context(), actorOf(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *Handler) addPhoto(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL         string `json:"url"`
		Description string `json:"description"`
		IsPublic    *bool  `json:"is_public"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	photo := models.UserPhoto{URL: in.URL, Description: in.Description, IsPublic: true}
	if in.IsPublic != nil {
		photo.IsPublic = *in.IsPublic
	}
	created, err := h.svc.Users.AddPhoto(r.Context(), actorOf(r).UserID, photo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "photoID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	photo, err := h.svc.Users.GetPhoto(r.Context(), actorOf(r).UserID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

func (h *Handler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "photoID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Users.DeletePhoto(r.Context(), actorOf(r).UserID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
