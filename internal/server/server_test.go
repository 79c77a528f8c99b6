package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/storage/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func health(t *testing.T, s *Server) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Engine.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth_ReportsStaleDepth(t *testing.T) {
	store := memory.New(nil)
	hour := time.Date(2021, 3, 17, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.MarkAggregateStale(context.Background(), uuid.New(), aggregation.Hour, hour)
		require.NoError(t, err)
	}

	code, body := health(t, New(":0", nil, store, "release"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", body["status"])
	require.EqualValues(t, 3, body["stale_aggregates"])
}

func TestHealth_DatabaseUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	code, body := health(t, New(":0", db, nil, "release"))
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unhealthy", body["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}
