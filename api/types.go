// Package api holds the JSON request and response bodies of the HTTP API.
package api

import (
	"time"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Seats     []Seat    `json:"seats,omitempty"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type PaginationParams struct {
	Page     *int `validate:"omitempty,gte=1,lte=10000000"`
	PageSize *int `validate:"omitempty,gte=1,lte=100"`
}

type Seat struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

// SeatRequest uses pointers so that a missing coordinate can be told apart
// from a zero one.
type SeatRequest struct {
	Row  *int `json:"row" validate:"required"`
	Seat *int `json:"seat" validate:"required"`
}

type CreateReservationRequest struct {
	Seats []SeatRequest `json:"seats" validate:"dive"`
}

type Ticket struct {
	Id   int `json:"id"`
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

type ReservationResponse struct {
	Id            int       `json:"id"`
	Reference     uuid.UUID `json:"reference"`
	PerformanceId int       `json:"performanceId"`
	CreatedAt     time.Time `json:"createdAt"`
	Tickets       []Ticket  `json:"tickets"`
}

type ReservationSummary struct {
	Id            int       `json:"id"`
	Reference     uuid.UUID `json:"reference"`
	PerformanceId int       `json:"performanceId"`
	PlayTitle     string    `json:"playTitle"`
	HallName      string    `json:"hallName"`
	ShowTime      time.Time `json:"showTime"`
	CreatedAt     time.Time `json:"createdAt"`
	Tickets       []Ticket  `json:"tickets"`
}

type UserReservationsResponse struct {
	Reservations []ReservationSummary `json:"reservations"`
	Metadata     Metadata             `json:"metadata"`
}

type Play struct {
	Id          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Hall struct {
	Id          int    `json:"id"`
	Name        string `json:"name"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seatsPerRow"`
	Capacity    int    `json:"capacity"`
}

type PerformanceSummary struct {
	Id               int       `json:"id"`
	Play             Play      `json:"play"`
	Hall             Hall      `json:"hall"`
	ShowTime         time.Time `json:"showTime"`
	TicketsAvailable int       `json:"ticketsAvailable"`
}

type PerformancesResponse struct {
	Performances []PerformanceSummary `json:"performances"`
	Metadata     Metadata             `json:"metadata"`
}

type PerformanceResponse struct {
	Id               int       `json:"id"`
	Play             Play      `json:"play"`
	Hall             Hall      `json:"hall"`
	ShowTime         time.Time `json:"showTime"`
	TicketsAvailable int       `json:"ticketsAvailable"`
	TakenPlaces      []Seat    `json:"takenPlaces"`
}

type SeatMapSeat struct {
	Seat      int  `json:"seat"`
	Available bool `json:"available"`
}

type SeatRow struct {
	Row   int           `json:"row"`
	Seats []SeatMapSeat `json:"seats"`
}

type SeatMapResponse struct {
	PerformanceId int       `json:"performanceId"`
	HallId        int       `json:"hallId"`
	HallName      string    `json:"hallName"`
	Available     int       `json:"available"`
	Capacity      int       `json:"capacity"`
	SeatRows      []SeatRow `json:"seatRows"`
}
