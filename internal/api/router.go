package api

import (
	"net/http"

	"dogsitter/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the REST API.
func NewRouter(h *Handler, tokens TokenParser, rl config.APIRateLimitConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(rateLimit(newRateLimiter(rl)))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(tokens, h.svc.Users, h.logger))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		// Public catalog and sitter directory.
		r.Get("/services", h.listServices)
		r.Get("/services/{serviceID}", h.getService)
		r.Get("/dogsitters", h.listSitters)
		r.Get("/dogsitters/{sitterID}", h.getSitter)
		r.Get("/dogsitters/{sitterID}/reviews", h.sitterReviews)
		r.Get("/dogsitters/{sitterID}/rating", h.sitterRating)
		r.Get("/dogsitters/{sitterID}/availability", h.sitterAvailability)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			mountUsers(r, h)
			mountAnimals(r, h)
			mountSitters(r, h)
			mountBookings(r, h)

			r.Post("/services", h.createService)
			r.Patch("/services/{serviceID}", h.updateService)
			r.Delete("/services/{serviceID}", h.deactivateService)

			r.Delete("/reviews/{reviewID}", h.deleteReview)
			r.Get("/admin/bookings/export", h.exportBookings)
		})
	})

	return r
}

func mountUsers(r chi.Router, h *Handler) {
	r.Route("/users/me", func(r chi.Router) {
		r.Get("/", h.getMe)
		r.Patch("/", h.updateMe)
		r.Delete("/", h.deactivateMe)
		r.Delete("/delete", h.deleteMe)
		r.Post("/password", h.changePassword)
		r.Get("/stats", h.myStats)
		r.Get("/bookings/upcoming", h.myUpcoming)
		r.Get("/bookings/history", h.myHistory)
		r.Get("/bookings/monthly", h.myMonthly)
		r.Get("/photos", h.listPhotos)
		r.Post("/photos", h.addPhoto)
		r.Get("/photos/{photoID}", h.getPhoto)
		r.Delete("/photos/{photoID}", h.deletePhoto)
	})
}

func mountAnimals(r chi.Router, h *Handler) {
	r.Route("/animals", func(r chi.Router) {
		r.Get("/", h.listAnimals)
		r.Post("/", h.createAnimal)
		r.Get("/search", h.searchAnimals)
		r.Get("/{animalID}", h.getAnimal)
		r.Patch("/{animalID}", h.updateAnimal)
		r.Delete("/{animalID}", h.deleteAnimal)
	})
}

func mountSitters(r chi.Router, h *Handler) {
	r.Post("/dogsitters", h.becomeSitter)
	r.Get("/dogsitters/me", h.mySitterProfile)
	r.Patch("/dogsitters/me", h.updateMySitterProfile)
	r.Get("/dogsitters/{sitterID}/statistics", h.sitterStatistics)
	r.Post("/dogsitters/{sitterID}/block", h.blockSitter)
	r.Post("/dogsitters/{sitterID}/unblock", h.unblockSitter)
}

func mountBookings(r chi.Router, h *Handler) {
	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", h.listBookings)
		r.Post("/", h.createBooking)
		r.Post("/quote", h.quoteBooking)
		r.Get("/{bookingID}", h.getBooking)
		r.Patch("/{bookingID}", h.updateBooking)
		r.Delete("/{bookingID}", h.deleteBooking)
		r.Post("/{bookingID}/cancel", h.bookingTransition(cancelBooking))
		r.Post("/{bookingID}/confirm", h.bookingTransition(confirmBooking))
		r.Post("/{bookingID}/complete", h.bookingTransition(completeBooking))
		r.Get("/{bookingID}/review", h.getBookingReview)
		r.Post("/{bookingID}/review", h.createBookingReview)
	})
}
