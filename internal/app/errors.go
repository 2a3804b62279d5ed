package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/theatre-reservation-system/api"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	appvalidator "github.com/metinatakli/theatre-reservation-system/internal/validator"
)

const (
	ErrInternalServer     = "The server encountered a problem and could not process your request"
	ErrNotFound           = "The requested resource not found"
	ErrMethodNotAllowed   = "The method is not supported for this resource"
	ErrUnauthorizedAccess = "You must be authenticated to access this resource"
	ErrFailedValidation   = "One or more fields have invalid values"
	ErrBookingUnavailable = "The reservation could not be completed at the moment, please try again"
	ErrRequestCancelled   = "The request was cancelled by the client"
)

// Machine readable codes sent with booking errors.
const (
	CodeEmptyReservation    = "EMPTY_RESERVATION"
	CodeDuplicateSeat       = "DUPLICATE_SEAT"
	CodeSeatOutOfBounds     = "SEAT_OUT_OF_BOUNDS"
	CodeSeatAlreadyTaken    = "SEAT_ALREADY_TAKEN"
	CodePerformanceNotFound = "PERFORMANCE_NOT_FOUND"
	CodeReservationNotFound = "RESERVATION_NOT_FOUND"
	CodeBookingUnavailable  = "BOOKING_UNAVAILABLE"
)

const retryAfterSeconds = "1"

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned before a response was ready.
const statusClientClosedRequest = 499

func (app *Application) logError(r *http.Request, err error) {
	app.contextGetLogger(r).Error(err.Error())
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.writeErrorResponse(w, r, status, api.ErrorResponse{Message: message}, nil)
}

func (app *Application) writeErrorResponse(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	resp api.ErrorResponse,
	headers http.Header) {

	resp.RequestId = middleware.GetReqID(r.Context())
	resp.Timestamp = time.Now()

	err := app.writeJSON(w, status, resp, headers)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrNotFound)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusUnauthorized, ErrUnauthorizedAccess)
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		app.badRequestResponse(w, r, err)
		return
	}

	resp := api.ValidationErrorResponse{
		Message:          ErrFailedValidation,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: make([]api.ValidationError, len(validationErrs)),
	}

	for i, fieldErr := range validationErrs {
		resp.ValidationErrors[i] = api.ValidationError{
			Field: fieldPath(fieldErr),
			Issue: appvalidator.ValidationMessage(fieldErr),
		}
	}

	err = app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

// fieldPath drops the top-level struct name from the namespace, leaving
// e.g. "seats[0].row".
func fieldPath(fieldErr validator.FieldError) string {
	_, path, found := strings.Cut(fieldErr.Namespace(), ".")
	if !found {
		return fieldErr.Field()
	}

	return path
}

// bookingErrorResponse maps errors of the booking core to responses. Request
// defects are 422, unknown performances and reservations 404, seat conflicts
// 409 and failures worth retrying unchanged 503.
func (app *Application) bookingErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		duplicate   *domain.DuplicateSeatError
		outOfBounds *domain.SeatOutOfBoundsError
		taken       *domain.SeatAlreadyTakenError
	)

	switch {
	case errors.Is(err, domain.ErrEmptyReservation):
		app.writeErrorResponse(w, r, http.StatusUnprocessableEntity, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodeEmptyReservation,
		}, nil)

	case errors.As(err, &duplicate):
		app.writeErrorResponse(w, r, http.StatusUnprocessableEntity, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodeDuplicateSeat,
			Seats:   toApiSeats([]domain.Seat{duplicate.Seat}),
		}, nil)

	case errors.As(err, &outOfBounds):
		app.writeErrorResponse(w, r, http.StatusUnprocessableEntity, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodeSeatOutOfBounds,
			Seats:   toApiSeats([]domain.Seat{outOfBounds.Seat}),
		}, nil)

	case errors.As(err, &taken):
		app.writeErrorResponse(w, r, http.StatusConflict, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodeSeatAlreadyTaken,
			Seats:   toApiSeats(taken.Seats),
		}, nil)

	case errors.Is(err, domain.ErrPerformanceNotFound):
		app.writeErrorResponse(w, r, http.StatusNotFound, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodePerformanceNotFound,
		}, nil)

	case errors.Is(err, domain.ErrReservationNotFound):
		app.writeErrorResponse(w, r, http.StatusNotFound, api.ErrorResponse{
			Message: err.Error(),
			Code:    CodeReservationNotFound,
		}, nil)

	case errors.Is(err, context.Canceled):
		app.contextGetLogger(r).Info("client closed request", "error", err.Error())
		app.errorResponse(w, r, statusClientClosedRequest, ErrRequestCancelled)

	case errors.Is(err, domain.ErrPersistenceFailure), errors.Is(err, context.DeadlineExceeded):
		app.logError(r, err)

		headers := make(http.Header)
		headers.Set("Retry-After", retryAfterSeconds)

		app.writeErrorResponse(w, r, http.StatusServiceUnavailable, api.ErrorResponse{
			Message: ErrBookingUnavailable,
			Code:    CodeBookingUnavailable,
		}, headers)

	default:
		app.serverErrorResponse(w, r, err)
	}
}
