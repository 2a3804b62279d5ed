package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/metinatakli/theatre-reservation-system/api"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)
	r.Use(app.requestLogger)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/healthcheck", app.GetHealth)

	r.Route("/performances", func(r chi.Router) {
		r.Get("/", app.withPagination(app.GetPerformancesHandler))

		r.Route("/{performanceId}", func(r chi.Router) {
			r.Get("/", app.withIntParam("performanceId", app.GetPerformanceHandler))
			r.Get("/seat-map", app.withIntParam("performanceId", app.GetSeatMapHandler))

			r.With(app.requireAuthentication).
				Post("/reservations", app.withIntParam("performanceId", app.CreateReservationHandler))
		})
	})

	r.With(app.requireAuthentication).Route("/users/me/reservations", func(r chi.Router) {
		r.Get("/", app.withPagination(app.GetReservationsOfUserHandler))
		r.Get("/{reservationId}", app.withIntParam("reservationId", app.GetUserReservationById))
		r.Delete("/{reservationId}", app.withIntParam("reservationId", app.CancelReservationHandler))
	})

	return r
}

func (app *Application) withIntParam(
	name string,
	next func(http.ResponseWriter, *http.Request, int)) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		value, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			app.badRequestResponse(w, r, fmt.Errorf("invalid %s", name))
			return
		}

		next(w, r, value)
	}
}

func (app *Application) withPagination(
	next func(http.ResponseWriter, *http.Request, api.PaginationParams)) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		params, err := readPaginationParams(r)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		next(w, r, params)
	}
}
