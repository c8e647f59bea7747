package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/sentinel/internal/models"
	httputil "github.com/secureauth/sentinel/pkg/http"
)

func newAttemptHandler(ts *testServices) *AttemptHandler {
	return NewAttemptHandler(ts.login, &httputil.IPConfig{}, newTestLogger())
}

func TestSubmitAttempt_InvalidBody(t *testing.T) {
	h := newAttemptHandler(newTestServices())

	req := httptest.NewRequest(http.MethodPost, "/v1/attempts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.SubmitAttempt(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAttempt_ValidationErrors(t *testing.T) {
	h := newAttemptHandler(newTestServices())

	tests := []struct {
		name string
		body string
	}{
		{"missing account", `{"status": "success", "ip_address": "203.0.113.10"}`},
		{"bad account id", `{"account_id": "nope", "status": "success", "ip_address": "203.0.113.10"}`},
		{"bad status", `{"account_id": "` + uuid.NewString() + `", "status": "sideways", "ip_address": "203.0.113.10"}`},
		{"bad ip", `{"account_id": "` + uuid.NewString() + `", "status": "success", "ip_address": "not-an-ip"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/attempts", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.SubmitAttempt(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitAttempt_NewDeviceNewCountry(t *testing.T) {
	ts := newTestServices()
	ts.geo.ResolveFunc = func(ctx context.Context, ip string) (*models.GeoContext, error) {
		return &models.GeoContext{
			Country:        "Japan",
			City:           "Tokyo",
			Latitude:       35.68,
			Longitude:      139.69,
			HasCoordinates: true,
		}, nil
	}

	h := newAttemptHandler(ts)

	body := `{
		"account_id": "` + uuid.NewString() + `",
		"status": "success",
		"ip_address": "203.0.113.10",
		"signals": {"user_agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"}
	}`

	req := httptest.NewRequest(http.MethodPost, "/v1/attempts", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.SubmitAttempt(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SubmitAttemptResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Attempt)
	assert.Equal(t, 60, resp.Attempt.RiskScore)
	assert.True(t, resp.Attempt.IsSuspicious)
	assert.True(t, resp.DeviceWasNew)
	assert.Equal(t, "Japan", *resp.Attempt.Country)
	require.NotNil(t, resp.Alert)
	assert.Equal(t, models.AlertTypeNewDeviceHighRisk, resp.Alert.AlertType)
}

func TestSubmitAttempt_FallsBackToRemoteAddr(t *testing.T) {
	ts := newTestServices()
	var seenIP string
	ts.geo.ResolveFunc = func(ctx context.Context, ip string) (*models.GeoContext, error) {
		seenIP = ip
		return nil, models.ErrUnavailableDependency
	}

	h := newAttemptHandler(ts)

	body := `{"account_id": "` + uuid.NewString() + `", "status": "failed"}`

	req := httptest.NewRequest(http.MethodPost, "/v1/attempts", strings.NewReader(body))
	req.RemoteAddr = "198.51.100.7:41000"
	rec := httptest.NewRecorder()

	h.SubmitAttempt(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "198.51.100.7", seenIP)
}

func TestSubmitAttempt_LedgerFailure(t *testing.T) {
	ts := newTestServices()
	ts.ledger.AppendFunc = func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
		return nil, models.ErrStorage
	}

	h := newAttemptHandler(ts)

	body := `{"account_id": "` + uuid.NewString() + `", "status": "success", "ip_address": "203.0.113.10"}`

	req := httptest.NewRequest(http.MethodPost, "/v1/attempts", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.SubmitAttempt(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
