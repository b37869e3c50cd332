package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithLogger(t *testing.T, level slog.Level) (*http.Request, *strings.Builder) {
	t.Helper()
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))
	ctx := logger.WithLogger(context.Background(), log)
	ctx = context.WithValue(ctx, TraceIDKey, "trace-1234")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil).WithContext(ctx)
	return req, &buf
}

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()
	req, _ := requestWithLogger(t, slog.LevelDebug)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]int{"parked_count": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"parked_count":2}`, w.Body.String())
}

func TestRespondWithJSONEncodingError(t *testing.T) {
	t.Parallel()
	req, logs := requestWithLogger(t, slog.LevelDebug)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()
	req, _ := requestWithLogger(t, slog.LevelDebug)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request", body.Error)
	assert.Equal(t, "trace-1234", body.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()
	sensitive := errors.New("connect postgres://app:hunter2@db:5432/cards failed")

	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "level=ERROR"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "level=WARN"},
		{name: "client error", status: http.StatusNotFound, wantLevel: "level=DEBUG"},
		{name: "elevated client error", status: http.StatusUnauthorized, opts: []ResponseOption{WithElevatedLogLevel()}, wantLevel: "level=WARN"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req, logs := requestWithLogger(t, slog.LevelDebug)
			w := httptest.NewRecorder()

			RespondWithErrorAndLog(w, req, tc.status, "Something went wrong", sensitive, tc.opts...)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "postgres")
			assert.Contains(t, logs.String(), tc.wantLevel)
			assert.Contains(t, logs.String(), "trace-1234")
			assert.NotContains(t, logs.String(), "hunter2")
		})
	}
}
