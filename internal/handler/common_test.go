package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteBookingErrorConflict(t *testing.T) {
	c, rec := newTestContext(t)
	err := writeBookingError(c, &booking.ConflictError{Rejections: []booking.Rejection{{
		Code: booking.CodeResourceConflict,
		Conflicts: []booking.ConflictSummary{{
			ReservationID: 5,
			FacilityID:    2,
			FacilityName:  "Room A",
			RequesterID:   9,
			StartsAt:      time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
			EndsAt:        time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		}},
	}}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Code       string `json:"code"`
		Rejections []struct {
			Code      string `json:"code"`
			Conflicts []struct {
				ReservationID uint64 `json:"reservation_id"`
				FacilityName  string `json:"facility_name"`
			} `json:"conflicts"`
		} `json:"rejections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RESOURCE_CONFLICT", body.Code)
	require.Len(t, body.Rejections, 1)
	require.Len(t, body.Rejections[0].Conflicts, 1)
	assert.Equal(t, uint64(5), body.Rejections[0].Conflicts[0].ReservationID)
	assert.Equal(t, "Room A", body.Rejections[0].Conflicts[0].FacilityName)
}

func TestWriteBookingErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid window", fmt.Errorf("%w: start after end", booking.ErrInvalidWindow), http.StatusUnprocessableEntity},
		{"not found", booking.ErrNotFound, http.StatusNotFound},
		{"not editable", fmt.Errorf("%w: already started", booking.ErrNotEditable), http.StatusConflict},
		{"invalid transition", fmt.Errorf("%w: APPROVED -> DENIED", booking.ErrInvalidTransition), http.StatusConflict},
		{"storage down", fmt.Errorf("%w: dial tcp", booking.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"timeout", booking.ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newTestContext(t)
			require.NoError(t, writeBookingError(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestWriteBookingErrorHidesInternalDetail(t *testing.T) {
	c, rec := newTestContext(t)
	require.NoError(t, writeBookingError(c, fmt.Errorf("%w: password@host refused", booking.ErrStorageUnavailable)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password@host")
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGetUserIDShapes(t *testing.T) {
	c, _ := newTestContext(t)

	c.Set("user_id", "42")
	id, err := getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	c.Set("user_id", float64(7)) // JSON numbers decode as float64
	id, err = getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	c.Set("user_id", nil)
	_, err = getUserID(c)
	assert.Error(t, err)
}
