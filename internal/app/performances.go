package app

import (
	"fmt"
	"net/http"

	"github.com/metinatakli/theatre-reservation-system/api"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

func (app *Application) GetPerformancesHandler(w http.ResponseWriter, r *http.Request, params api.PaginationParams) {
	err := app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	performances, metadata, err := app.performanceRepo.ListPerformances(r.Context(), toPagination(params))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.PerformancesResponse{
		Performances: make([]api.PerformanceSummary, len(performances)),
		Metadata:     toApiMetadata(metadata),
	}

	for i, performance := range performances {
		resp.Performances[i] = api.PerformanceSummary{
			Id:               performance.ID,
			Play:             toApiPlay(performance.Play),
			Hall:             toApiHall(performance.Hall),
			ShowTime:         performance.ShowTime,
			TicketsAvailable: performance.TicketsAvailable,
		}
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetPerformanceHandler(w http.ResponseWriter, r *http.Request, performanceID int) {
	if performanceID < 1 {
		app.badRequestResponse(w, r, fmt.Errorf("performance ID must be greater than zero"))
		return
	}

	availability, err := app.coordinator.Availability(r.Context(), performanceID)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	performance := availability.Performance

	resp := api.PerformanceResponse{
		Id:               performance.ID,
		Play:             toApiPlay(performance.Play),
		Hall:             toApiHall(performance.Hall),
		ShowTime:         performance.ShowTime,
		TicketsAvailable: availability.Available(),
		TakenPlaces:      toApiSeats(availability.Occupied),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetSeatMapHandler(w http.ResponseWriter, r *http.Request, performanceID int) {
	if performanceID < 1 {
		app.badRequestResponse(w, r, fmt.Errorf("performance ID must be greater than zero"))
		return
	}

	availability, err := app.coordinator.Availability(r.Context(), performanceID)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toSeatMapResponse(availability), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatMapResponse(availability *domain.SeatAvailability) api.SeatMapResponse {
	performance := availability.Performance
	layout := performance.Hall.Layout

	occupied := make(map[domain.Seat]struct{}, len(availability.Occupied))
	for _, seat := range availability.Occupied {
		occupied[seat] = struct{}{}
	}

	seatRows := make([]api.SeatRow, layout.Rows())

	for row := 1; row <= layout.Rows(); row++ {
		seats := make([]api.SeatMapSeat, layout.SeatsPerRow())

		for number := 1; number <= layout.SeatsPerRow(); number++ {
			_, taken := occupied[domain.Seat{Row: row, Number: number}]
			seats[number-1] = api.SeatMapSeat{Seat: number, Available: !taken}
		}

		seatRows[row-1] = api.SeatRow{Row: row, Seats: seats}
	}

	return api.SeatMapResponse{
		PerformanceId: performance.ID,
		HallId:        performance.Hall.ID,
		HallName:      performance.Hall.Name,
		Available:     availability.Available(),
		Capacity:      availability.Capacity(),
		SeatRows:      seatRows,
	}
}

func toApiPlay(play domain.Play) api.Play {
	return api.Play{
		Id:          play.ID,
		Title:       play.Title,
		Description: play.Description,
	}
}

func toApiHall(hall domain.Hall) api.Hall {
	return api.Hall{
		Id:          hall.ID,
		Name:        hall.Name,
		Rows:        hall.Layout.Rows(),
		SeatsPerRow: hall.Layout.SeatsPerRow(),
		Capacity:    hall.Layout.Capacity(),
	}
}
