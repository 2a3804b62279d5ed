package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/theatre-reservation-system/internal/app"
	"github.com/stretchr/testify/require"
)

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
	"reference": {},
	"showTime":  {},
}

func prepareRequest(
	method, path string,
	body io.Reader,
	headers map[string]string,
	cookies []http.Cookie) (*http.Request, error) {

	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	for i := range cookies {
		req.AddCookie(&cookies[i])
	}

	return req, nil
}

func compareResponse(t testing.TB, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indetermistic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}
		if nested, ok := m[k].(map[string]any); ok {
			cleanMap(nested)
		}
	}
}

func executeSQLFile(t testing.TB, db *pgxpool.Pool, path string) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = db.Exec(context.Background(), string(content))
	require.NoError(t, err, "failed to execute %s", path)
}

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}

// resetState restores the catalog fixture, drops all reservations and starts
// over with a fresh coordinator.
func (a *TestApp) resetState(t testing.TB) {
	t.Helper()

	executeSQLFile(t, a.DB, "testdata/catalog_down.sql")
	executeSQLFile(t, a.DB, "testdata/catalog_up.sql")

	err := a.RedisClient.Del(
		context.Background(),
		ledgerKey(SmallStagePerformanceId),
		ledgerKey(MainStagePerformanceId),
	).Err()
	require.NoError(t, err)

	require.NoError(t, a.rebuild())
}

// seedReservations inserts the reservations of testdata/reservations_up.sql
// and reseeds the ledger from them.
func (a *TestApp) seedReservations(t testing.TB) {
	t.Helper()

	a.resetState(t)
	executeSQLFile(t, a.DB, "testdata/reservations_up.sql")
	require.NoError(t, a.rebuild())
}

// authenticatedUserCookies writes a session for userId into the shared store,
// as the account service does after a login.
func (a *TestApp) authenticatedUserCookies(t testing.TB, userId int) []http.Cookie {
	t.Helper()

	ctx, err := a.SessionManager.Load(context.Background(), "")
	require.NoError(t, err)

	a.SessionManager.Put(ctx, app.SessionKeyUserId.String(), userId)

	token, _, err := a.SessionManager.Commit(ctx)
	require.NoError(t, err)

	return []http.Cookie{{Name: a.SessionManager.Cookie.Name, Value: token}}
}

func (a *TestApp) countTickets(t testing.TB, performanceID int) int {
	t.Helper()

	var count int
	err := a.DB.QueryRow(
		context.Background(),
		"SELECT COUNT(*) FROM tickets WHERE performance_id = $1",
		performanceID).Scan(&count)
	require.NoError(t, err)

	return count
}

func ledgerKey(performanceID int) string {
	return fmt.Sprintf("ledger:performance:%d", performanceID)
}
