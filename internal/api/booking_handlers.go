package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"dogsitter/internal/export"
	"dogsitter/internal/models"
	"dogsitter/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// bookingRequest is the create/update body. Read-only fields are accepted and
// ignored so clients can send back what they received.
type bookingRequest struct {
	service.BookingInput
	Version    int64           `json:"version"`
	TotalPrice json.RawMessage `json:"total_price,omitempty"`
	Status     json.RawMessage `json:"status,omitempty"`
}

func bookingFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	var (
		f   models.BookingFilter
		err error
	)
	f.Status = strings.TrimSpace(q.Get("status"))
	f.AnimalType = strings.TrimSpace(q.Get("animal_type"))
	f.Sort = strings.TrimSpace(q.Get("ordering"))
	if f.StartFrom, err = queryDate(r, "start_date"); err != nil {
		return f, err
	}
	if f.EndTo, err = queryDate(r, "end_date"); err != nil {
		return f, err
	}
	if f.DogSitterID, err = queryInt64(r, "dogsitter"); err != nil {
		return f, err
	}
	if f.UserID, err = queryInt64(r, "user"); err != nil {
		return f, err
	}
	if f.ServiceID, err = queryInt64(r, "service"); err != nil {
		return f, err
	}
	if f.HasReview, err = queryBoolPtr(r, "has_review"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := bookingFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	bookings, total, err := h.svc.Bookings.List(r.Context(), actorOf(r), scope, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, offset := service.NormalizePage(filter.Limit, filter.Offset)
	writeJSON(w, http.StatusOK, listResponse{Results: bookings, Count: total, Limit: limit, Offset: offset})
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Create(r.Context(), actorOf(r), req.BookingInput)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) quoteBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	quote, err := h.svc.Bookings.Quote(r.Context(), actorOf(r), req.BookingInput)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	booking, err := h.svc.Bookings.Update(r.Context(), actorOf(r), id, req.Version, req.BookingInput)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Bookings.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionFunc func(h *Handler, r *http.Request, id, version int64) (*models.Booking, error)

// bookingTransition adapts a status change into a handler.
func (h *Handler) bookingTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "bookingID")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		v, err := version(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		booking, err := fn(h, r, id, v)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

func cancelBooking(h *Handler, r *http.Request, id, version int64) (*models.Booking, error) {
	return h.svc.Bookings.Cancel(r.Context(), actorOf(r), id, version)
}

func confirmBooking(h *Handler, r *http.Request, id, version int64) (*models.Booking, error) {
	return h.svc.Bookings.Confirm(r.Context(), actorOf(r), id, version)
}

func completeBooking(h *Handler, r *http.Request, id, version int64) (*models.Booking, error) {
	return h.svc.Bookings.Complete(r.Context(), actorOf(r), id, version)
}

func (h *Handler) getBookingReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	review, err := h.svc.Reviews.GetForBooking(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *Handler) createBookingReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in service.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	review, err := h.svc.Reviews.Create(r.Context(), actorOf(r), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reviewID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Reviews.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportBookings streams the bookings of [from, to] as an XLSX workbook.
func (h *Handler) exportBookings(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bookings, err := h.svc.Bookings.ExportRange(r.Context(), actorOf(r), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.BookingsXLSX(&buf, from, to, bookings); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(from, to)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
