package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/metinatakli/theatre-reservation-system/api"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/metinatakli/theatre-reservation-system/internal/mocks"
	"github.com/metinatakli/theatre-reservation-system/internal/validator"
)

func newTestApplication(opts ...func(*Application)) *Application {
	app := &Application{
		config:          Config{Env: "test"},
		validator:       validator.NewValidator(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessionManager:  scs.New(),
		performanceRepo: &mocks.MockPerformanceRepo{},
		reservationRepo: &mocks.MockReservationRepo{},
		coordinator:     &mocks.MockCoordinator{},
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func setupTestSession(t *testing.T, app *Application, r *http.Request, userId int) *http.Request {
	ctx, err := app.sessionManager.Load(r.Context(), "session")
	if err != nil {
		t.Errorf("Failed to load session: %v", err)
	}

	app.sessionManager.Put(ctx, SessionKeyUserId.String(), userId)

	return r.WithContext(ctx)
}

// executeRequest builds a request with body encoded as JSON. A string body
// is sent as is.
func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	var resp struct {
		api.ErrorResponse
		ValidationErrors []api.ValidationError `json:"validationErrors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if resp.Timestamp.IsZero() {
		t.Errorf("Error response is missing its timestamp")
	}

	if tt.wantErrMessage == "" {
		return
	}

	if len(resp.ValidationErrors) > 0 {
		issues := make([]string, len(resp.ValidationErrors))
		for i, vErr := range resp.ValidationErrors {
			issues[i] = vErr.Issue
		}

		if !slices.Contains(issues, tt.wantErrMessage) {
			t.Errorf("Expected validation error message '%s' not found in %v", tt.wantErrMessage, issues)
		}
		return
	}

	if resp.Message != tt.wantErrMessage {
		t.Errorf("Error message = %v, want %v", resp.Message, tt.wantErrMessage)
	}
}

func newTestPerformance(id, rows, seatsPerRow int) *domain.Performance {
	layout, err := domain.NewHallLayout(rows, seatsPerRow)
	if err != nil {
		panic(err)
	}

	return &domain.Performance{
		ID:       id,
		Play:     domain.Play{ID: 3, Title: "The Seagull", Description: "A comedy in four acts"},
		Hall:     domain.Hall{ID: 2, Name: "Small Stage", Layout: layout},
		ShowTime: time.Date(2025, 12, 1, 19, 30, 0, 0, time.UTC),
	}
}

func ptr[T any](v T) *T {
	return &v
}
