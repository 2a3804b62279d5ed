// Package events publishes reservation lifecycle events for downstream
// consumers.
package events

import (
	"context"
	"time"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
)

type ReservationEvent struct {
	Type          string      `json:"type"`
	ReservationID int         `json:"reservationId"`
	Reference     string      `json:"reference"`
	UserID        int         `json:"userId"`
	PerformanceID int         `json:"performanceId"`
	Seats         []EventSeat `json:"seats"`
	OccurredAt    time.Time   `json:"occurredAt"`
}

type EventSeat struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

func NewReservationEvent(eventType string, reservation *domain.Reservation, occurredAt time.Time) ReservationEvent {
	seats := make([]EventSeat, len(reservation.Tickets))
	for i, ticket := range reservation.Tickets {
		seats[i] = EventSeat{Row: ticket.Seat.Row, Seat: ticket.Seat.Number}
	}

	return ReservationEvent{
		Type:          eventType,
		ReservationID: reservation.ID,
		Reference:     reservation.Reference.String(),
		UserID:        reservation.UserID,
		PerformanceID: reservation.PerformanceID,
		Seats:         seats,
		OccurredAt:    occurredAt.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
