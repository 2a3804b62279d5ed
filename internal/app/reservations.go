package app

import (
	"fmt"
	"net/http"

	"github.com/metinatakli/theatre-reservation-system/api"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

func (app *Application) CreateReservationHandler(w http.ResponseWriter, r *http.Request, performanceID int) {
	logger := app.contextGetLogger(r)

	if performanceID < 1 {
		app.badRequestResponse(w, r, fmt.Errorf("performance ID must be greater than zero"))
		return
	}

	var input api.CreateReservationRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	seats := make([]domain.Seat, len(input.Seats))
	for i, seat := range input.Seats {
		seats[i] = domain.Seat{Row: *seat.Row, Number: *seat.Seat}
	}

	reservation, err := app.coordinator.CreateReservation(r.Context(), performanceID, userId, seats)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	logger.Info("reservation created",
		"reservation_id", reservation.ID,
		"performance_id", performanceID,
		"seats", len(seats))

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/users/me/reservations/%d", reservation.ID))

	err = app.writeJSON(w, http.StatusCreated, toReservationResponse(reservation), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetReservationsOfUserHandler(
	w http.ResponseWriter,
	r *http.Request,
	params api.PaginationParams) {

	err := app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)
	pagination := toPagination(params)

	reservations, metadata, err := app.reservationRepo.GetSummariesByUserID(r.Context(), userId, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.UserReservationsResponse{
		Reservations: toReservationSummaries(reservations),
		Metadata:     toApiMetadata(metadata),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserReservationById(w http.ResponseWriter, r *http.Request, reservationID int) {
	reservation, ok := app.ownedReservation(w, r, reservationID)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelReservationHandler(w http.ResponseWriter, r *http.Request, reservationID int) {
	logger := app.contextGetLogger(r)

	_, ok := app.ownedReservation(w, r, reservationID)
	if !ok {
		return
	}

	reservation, err := app.coordinator.CancelReservation(r.Context(), reservationID)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	logger.Info("reservation cancelled",
		"reservation_id", reservation.ID,
		"performance_id", reservation.PerformanceID)

	err = app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ownedReservation loads a reservation of the current user and writes the
// error response itself when there is none. Reservations of other users are
// reported as missing.
func (app *Application) ownedReservation(
	w http.ResponseWriter,
	r *http.Request,
	reservationID int) (*domain.Reservation, bool) {

	if reservationID < 1 {
		app.badRequestResponse(w, r, fmt.Errorf("reservation ID must be greater than zero"))
		return nil, false
	}

	userId := app.contextGetUserId(r)

	reservation, err := app.coordinator.GetReservation(r.Context(), reservationID)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return nil, false
	}

	if reservation.UserID != userId {
		app.contextGetLogger(r).Warn("reservation requested by another user",
			"reservation_id", reservationID,
			"user_id", userId)
		app.bookingErrorResponse(w, r, domain.ErrReservationNotFound)
		return nil, false
	}

	return reservation, true
}

func toReservationResponse(reservation *domain.Reservation) api.ReservationResponse {
	return api.ReservationResponse{
		Id:            reservation.ID,
		Reference:     reservation.Reference,
		PerformanceId: reservation.PerformanceID,
		CreatedAt:     reservation.CreatedAt,
		Tickets:       toApiTickets(reservation.Tickets),
	}
}

func toReservationSummaries(reservations []domain.ReservationSummary) []api.ReservationSummary {
	reservationSummaries := make([]api.ReservationSummary, len(reservations))

	for i, v := range reservations {
		reservationSummaries[i] = api.ReservationSummary{
			Id:            v.ID,
			Reference:     v.Reference,
			PerformanceId: v.PerformanceID,
			PlayTitle:     v.PlayTitle,
			HallName:      v.HallName,
			ShowTime:      v.ShowTime,
			CreatedAt:     v.CreatedAt,
			Tickets:       toApiTickets(v.Tickets),
		}
	}

	return reservationSummaries
}

func toApiTickets(tickets []domain.Ticket) []api.Ticket {
	apiTickets := make([]api.Ticket, len(tickets))

	for i, ticket := range tickets {
		apiTickets[i] = api.Ticket{
			Id:   ticket.ID,
			Row:  ticket.Seat.Row,
			Seat: ticket.Seat.Number,
		}
	}

	return apiTickets
}
