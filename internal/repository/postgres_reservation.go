package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

type PostgresReservationRepository struct {
	db *pgxpool.Pool
}

func NewPostgresReservationRepository(db *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{
		db: db,
	}
}

// Create inserts the reservation and its tickets in one transaction. Tickets
// are inserted with ON CONFLICT DO NOTHING against the unique seat
// constraint, so a seat sold by another process is detected without aborting
// the transaction; in that case nothing is committed and the conflicting
// seats are returned as *domain.SeatAlreadyTakenError.
func (p *PostgresReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO reservations (reference, user_id, performance_id, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`

		err := tx.QueryRow(
			ctx,
			query,
			reservation.Reference,
			reservation.UserID,
			reservation.PerformanceID,
			reservation.CreatedAt).Scan(&reservation.ID, &reservation.CreatedAt)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return domain.ErrPerformanceNotFound
			}

			return err
		}

		seatRows := make([]int32, len(reservation.Tickets))
		seatNumbers := make([]int32, len(reservation.Tickets))
		for i, ticket := range reservation.Tickets {
			seatRows[i] = int32(ticket.Seat.Row)
			seatNumbers[i] = int32(ticket.Seat.Number)
		}

		query = `
			INSERT INTO tickets (reservation_id, performance_id, seat_row, seat_number)
			SELECT $1, $2, s.seat_row, s.seat_number
			FROM unnest($3::int[], $4::int[]) WITH ORDINALITY AS s(seat_row, seat_number, ord)
			ORDER BY s.ord
			ON CONFLICT ON CONSTRAINT tickets_performance_seat_key DO NOTHING
			RETURNING id, seat_row, seat_number
		`

		rows, err := tx.Query(ctx, query, reservation.ID, reservation.PerformanceID, seatRows, seatNumbers)
		if err != nil {
			return err
		}
		defer rows.Close()

		inserted := make(map[domain.Seat]int, len(reservation.Tickets))

		for rows.Next() {
			var (
				ticketID int
				seat     domain.Seat
			)

			err = rows.Scan(&ticketID, &seat.Row, &seat.Number)
			if err != nil {
				return err
			}

			inserted[seat] = ticketID
		}

		if err = rows.Err(); err != nil {
			return err
		}

		var taken []domain.Seat
		for i := range reservation.Tickets {
			ticket := &reservation.Tickets[i]

			id, ok := inserted[ticket.Seat]
			if !ok {
				taken = append(taken, ticket.Seat)
				continue
			}

			ticket.ID = id
			ticket.ReservationID = reservation.ID
			ticket.PerformanceID = reservation.PerformanceID
		}

		if len(taken) > 0 {
			return &domain.SeatAlreadyTakenError{Seats: taken}
		}

		return nil
	})
}

func (p *PostgresReservationRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM reservations WHERE id = $1`

	result, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (p *PostgresReservationRepository) GetByID(ctx context.Context, id int) (*domain.Reservation, error) {
	query := `
		SELECT id, reference, user_id, performance_id, created_at
		FROM reservations
		WHERE id = $1
	`

	var reservation domain.Reservation

	err := p.db.QueryRow(ctx, query, id).Scan(
		&reservation.ID,
		&reservation.Reference,
		&reservation.UserID,
		&reservation.PerformanceID,
		&reservation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	tickets, err := p.retrieveTickets(ctx, []int64{int64(id)})
	if err != nil {
		return nil, err
	}

	reservation.Tickets = tickets[id]

	return &reservation, nil
}

func (p *PostgresReservationRepository) GetSummariesByUserID(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.ReservationSummary, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			r.id,
			r.reference,
			r.user_id,
			r.performance_id,
			r.created_at,
			pl.title,
			h.name,
			pf.show_time
		FROM reservations r
		JOIN performances pf ON r.performance_id = pf.id
		JOIN plays pl ON pf.play_id = pl.id
		JOIN theatre_halls h ON pf.hall_id = h.id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	reservations := make([]domain.ReservationSummary, 0)
	totalRecords := 0

	for rows.Next() {
		var reservation domain.ReservationSummary

		err := rows.Scan(
			&totalRecords,
			&reservation.ID,
			&reservation.Reference,
			&reservation.UserID,
			&reservation.PerformanceID,
			&reservation.CreatedAt,
			&reservation.PlayTitle,
			&reservation.HallName,
			&reservation.ShowTime,
		)
		if err != nil {
			return nil, nil, err
		}

		reservations = append(reservations, reservation)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(reservations) > 0 {
		ids := make([]int64, len(reservations))
		for i, reservation := range reservations {
			ids[i] = int64(reservation.ID)
		}

		tickets, err := p.retrieveTickets(ctx, ids)
		if err != nil {
			return nil, nil, err
		}

		for i := range reservations {
			reservations[i].Tickets = tickets[reservations[i].ID]
		}
	}

	metadata := domain.NewMetadata(totalRecords, pagination)

	return reservations, metadata, nil
}

// GetSeatClaimsByPerformanceID returns the sold seats of a performance, each
// held by the reference of the reservation it belongs to.
func (p *PostgresReservationRepository) GetSeatClaimsByPerformanceID(
	ctx context.Context,
	performanceID int) ([]domain.SeatClaim, error) {

	query := `
		SELECT t.seat_row, t.seat_number, r.reference
		FROM tickets t
		JOIN reservations r ON r.id = t.reservation_id
		WHERE t.performance_id = $1
		ORDER BY t.seat_row, t.seat_number
	`

	rows, err := p.db.Query(ctx, query, performanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]domain.SeatClaim, 0)

	for rows.Next() {
		var (
			claim     domain.SeatClaim
			reference uuid.UUID
		)

		err = rows.Scan(&claim.Seat.Row, &claim.Seat.Number, &reference)
		if err != nil {
			return nil, err
		}

		claim.Owner = reference.String()
		claims = append(claims, claim)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return claims, nil
}

// retrieveTickets loads the tickets of the given reservations keyed by
// reservation id, each list in insertion order.
func (p *PostgresReservationRepository) retrieveTickets(
	ctx context.Context,
	reservationIDs []int64) (map[int][]domain.Ticket, error) {

	query := `
		SELECT id, reservation_id, performance_id, seat_row, seat_number
		FROM tickets
		WHERE reservation_id = ANY($1)
		ORDER BY id
	`

	rows, err := p.db.Query(ctx, query, reservationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make(map[int][]domain.Ticket, len(reservationIDs))

	for rows.Next() {
		var ticket domain.Ticket

		err := rows.Scan(
			&ticket.ID,
			&ticket.ReservationID,
			&ticket.PerformanceID,
			&ticket.Seat.Row,
			&ticket.Seat.Number,
		)
		if err != nil {
			return nil, err
		}

		tickets[ticket.ReservationID] = append(tickets[ticket.ReservationID], ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}
