package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "not found", err: fmt.Errorf("round 3: %w", tournament.ErrNotFound), status: http.StatusNotFound, kind: "not_found"},
		{name: "transition", err: fmt.Errorf("%w: cannot start a round that is awaiting_pairing", tournament.ErrInvalidTransition), status: http.StatusConflict, kind: "invalid_transition"},
		{name: "already reported", err: fmt.Errorf("table 2: %w", tournament.ErrAlreadyReported), status: http.StatusConflict, kind: "already_reported"},
		{name: "forbidden", err: fmt.Errorf("%w: only the organizer can start", tournament.ErrForbidden), status: http.StatusForbidden, kind: "forbidden"},
		{name: "seat occupied", err: tournament.ErrSeatOccupied, status: http.StatusConflict, kind: "seat_occupied"},
		{name: "insufficient", err: tournament.ErrInsufficientPlayers, status: http.StatusUnprocessableEntity, kind: "insufficient_players"},
		{name: "timeout", err: fmt.Errorf("%w: %w", tournament.ErrTimeout, errors.New("deadline")), status: http.StatusServiceUnavailable, kind: "timeout"},
		{name: "unknown", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, "request failed", tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal Server Error", body.Error, "internal details stay in the log")
			} else {
				assert.Equal(t, tc.err.Error(), body.Error)
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	testCases := []struct {
		name       string
		body       string
		allowEmpty bool
		want       string
		wantErr    string
	}{
		{name: "valid", body: `{"name":"duplas"}`, want: "duplas"},
		{name: "empty allowed", body: ``, allowEmpty: true},
		{name: "empty rejected", body: ``, wantErr: "must not be empty"},
		{name: "unknown field", body: `{"nome":"x"}`, wantErr: "unknown key"},
		{name: "wrong type", body: `{"name":1}`, wantErr: "incorrect JSON type"},
		{name: "two values", body: `{"name":"a"}{"name":"b"}`, wantErr: "single JSON value"},
		{name: "broken", body: `{"name":`, wantErr: "badly-formed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := ReadJSON(httptest.NewRecorder(), req, &dst, tc.allowEmpty)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, dst.Name)
		})
	}
}
