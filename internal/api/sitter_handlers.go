package api

import (
	"net/http"
	"strings"

	"dogsitter/internal/models"
	"dogsitter/internal/service"
)

// sitterFilter parses the directory query string.
func sitterFilter(r *http.Request) (models.SitterFilter, error) {
	q := r.URL.Query()
	var (
		f   models.SitterFilter
		err error
	)
	if f.MinRating, err = queryFloatPtr(r, "min_rating"); err != nil {
		return f, err
	}
	if f.MaxRating, err = queryFloatPtr(r, "max_rating"); err != nil {
		return f, err
	}
	if f.MinExperience, err = queryIntPtr(r, "min_experience"); err != nil {
		return f, err
	}
	if f.MaxExperience, err = queryIntPtr(r, "max_experience"); err != nil {
		return f, err
	}
	if f.MinReviews, err = queryIntPtr(r, "min_reviews"); err != nil {
		return f, err
	}
	if f.HasReviews, err = queryBoolPtr(r, "has_reviews"); err != nil {
		return f, err
	}
	if f.IsAvailable, err = queryBoolPtr(r, "is_available"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	f.Name = q.Get("name")
	f.SortBy = strings.TrimSpace(q.Get("sort_by"))
	f.IncludeBlocked = q.Get("include_blocked") == "true"
	return f, nil
}

func (h *Handler) listSitters(w http.ResponseWriter, r *http.Request) {
	filter, err := sitterFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sitters, total, err := h.svc.Sitters.List(r.Context(), actorOf(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, offset := service.NormalizePage(filter.Limit, filter.Offset)
	writeJSON(w, http.StatusOK, listResponse{Results: sitters, Count: total, Limit: limit, Offset: offset})
}

func (h *Handler) becomeSitter(w http.ResponseWriter, r *http.Request) {
	var in service.SitterInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	sitter, err := h.svc.Sitters.Become(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sitter)
}

func (h *Handler) mySitterProfile(w http.ResponseWriter, r *http.Request) {
	sitter, err := h.svc.Sitters.Mine(r.Context(), actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitter)
}

func (h *Handler) updateMySitterProfile(w http.ResponseWriter, r *http.Request) {
	var upd service.SitterUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	sitter, err := h.svc.Sitters.UpdateMine(r.Context(), actorOf(r), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitter)
}

func (h *Handler) getSitter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sitter, err := h.svc.Sitters.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitter)
}

func (h *Handler) sitterReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reviews, total, err := h.svc.Sitters.Reviews(r.Context(), id, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, offset = service.NormalizePage(limit, offset)
	writeJSON(w, http.StatusOK, listResponse{Results: reviews, Count: total, Limit: limit, Offset: offset})
}

func (h *Handler) sitterRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.svc.Sitters.RatingSummary(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) sitterStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.svc.Sitters.Statistics(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) sitterAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := queryDate(r, "start_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	availability, err := h.svc.Sitters.Availability(r.Context(), id, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (h *Handler) blockSitter(w http.ResponseWriter, r *http.Request) {
	h.setSitterBlocked(w, r, true)
}

func (h *Handler) unblockSitter(w http.ResponseWriter, r *http.Request) {
	h.setSitterBlocked(w, r, false)
}

func (h *Handler) setSitterBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id, err := pathID(r, "sitterID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sitter, err := h.svc.Sitters.SetBlocked(r.Context(), actorOf(r), id, blocked)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitter)
}
