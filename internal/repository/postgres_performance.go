package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

type PostgresPerformanceRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPerformanceRepository(db *pgxpool.Pool) *PostgresPerformanceRepository {
	return &PostgresPerformanceRepository{
		db: db,
	}
}

func (p *PostgresPerformanceRepository) GetPerformance(ctx context.Context, id int) (*domain.Performance, error) {
	query := `
		SELECT
			pf.id,
			pf.show_time,
			pl.id,
			pl.title,
			pl.description,
			h.id,
			h.name,
			h.seat_rows,
			h.seats_in_row
		FROM performances pf
		JOIN plays pl ON pf.play_id = pl.id
		JOIN theatre_halls h ON pf.hall_id = h.id
		WHERE pf.id = $1
	`

	var (
		performance domain.Performance
		rows        int
		seatsInRow  int
	)

	err := p.db.QueryRow(ctx, query, id).Scan(
		&performance.ID,
		&performance.ShowTime,
		&performance.Play.ID,
		&performance.Play.Title,
		&performance.Play.Description,
		&performance.Hall.ID,
		&performance.Hall.Name,
		&rows,
		&seatsInRow,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	performance.Hall.Layout, err = domain.NewHallLayout(rows, seatsInRow)
	if err != nil {
		return nil, fmt.Errorf("hall %d: %w", performance.Hall.ID, err)
	}

	return &performance, nil
}

// ListPerformances returns performances ordered by show time, each with the
// number of seats that are still unsold.
func (p *PostgresPerformanceRepository) ListPerformances(
	ctx context.Context,
	pagination domain.Pagination) ([]domain.PerformanceSummary, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			pf.id,
			pf.show_time,
			pl.id,
			pl.title,
			pl.description,
			h.id,
			h.name,
			h.seat_rows,
			h.seats_in_row,
			h.seat_rows * h.seats_in_row - (
				SELECT COUNT(*) FROM tickets t WHERE t.performance_id = pf.id
			)
		FROM performances pf
		JOIN plays pl ON pf.play_id = pl.id
		JOIN theatre_halls h ON pf.hall_id = h.id
		ORDER BY pf.show_time, pf.id
		LIMIT $1 OFFSET $2
	`

	rows, err := p.db.Query(ctx, query, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	totalRecords := 0
	performances := make([]domain.PerformanceSummary, 0)

	for rows.Next() {
		var (
			summary    domain.PerformanceSummary
			seatRows   int
			seatsInRow int
		)

		err := rows.Scan(
			&totalRecords,
			&summary.ID,
			&summary.ShowTime,
			&summary.Play.ID,
			&summary.Play.Title,
			&summary.Play.Description,
			&summary.Hall.ID,
			&summary.Hall.Name,
			&seatRows,
			&seatsInRow,
			&summary.TicketsAvailable,
		)
		if err != nil {
			return nil, nil, err
		}

		summary.Hall.Layout, err = domain.NewHallLayout(seatRows, seatsInRow)
		if err != nil {
			return nil, nil, fmt.Errorf("hall %d: %w", summary.Hall.ID, err)
		}

		performances = append(performances, summary)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination)

	return performances, metadata, nil
}
