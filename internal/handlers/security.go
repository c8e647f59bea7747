package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/auth"
	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/internal/services"
	httputil "github.com/secureauth/sentinel/pkg/http"
)

// SecurityHandler serves the account-facing security dashboard endpoints.
type SecurityHandler struct {
	aggregation *services.AggregationService
	trust       *services.TrustService
	alerts      *services.AlertService
	logger      *slog.Logger
}

func NewSecurityHandler(aggregation *services.AggregationService, trust *services.TrustService, alerts *services.AlertService, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		aggregation: aggregation,
		trust:       trust,
		alerts:      alerts,
		logger:      logger,
	}
}

// Request/Response DTOs

// AlertResponse represents a security alert in the HTTP response
type AlertResponse struct {
	ID        string `json:"id"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// SessionResponse represents a trusted device session
type SessionResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Fingerprint string `json:"fingerprint"`
	IsCurrent   bool   `json:"is_current"`
	CreatedAt   string `json:"created_at"`
	LastUsedAt  string `json:"last_used_at"`
}

// TrendPointResponse is one day in the risk trend
type TrendPointResponse struct {
	Day         string `json:"day"`
	AverageRisk int    `json:"average_risk"`
	Attempts    int    `json:"attempts"`
}

// SummaryResponse aggregates the dashboard header counts
type SummaryResponse struct {
	LoginsLast30Days int `json:"logins_last_30_days"`
	SuspiciousLast30 int `json:"suspicious_last_30_days"`
	UnreadAlerts     int `json:"unread_alerts"`
	TrustedDevices   int `json:"trusted_devices"`
}

// PromoteDeviceRequest represents the request body for trusting a device
type PromoteDeviceRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,min=16,max=64"`
}

func alertModelToResponse(a *models.SecurityAlert) *AlertResponse {
	return &AlertResponse{
		ID:        a.ID.String(),
		AlertType: a.AlertType,
		Severity:  string(a.Severity),
		Message:   a.Message,
		IsRead:    a.IsRead,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func sessionToResponse(s services.ActiveSession) *SessionResponse {
	displayName := "Unknown device"
	if s.Device.DisplayName != nil {
		displayName = *s.Device.DisplayName
	}

	return &SessionResponse{
		ID:          s.Device.ID.String(),
		DisplayName: displayName,
		Fingerprint: s.Device.DeviceFingerprint,
		IsCurrent:   s.IsCurrent,
		CreatedAt:   s.Device.CreatedAt.Format(time.RFC3339),
		LastUsedAt:  s.Device.LastUsedAt.Format(time.RFC3339),
	}
}

// GetHistory returns the account's recent login attempts
//
// @Summary Recent login history
// @Param limit query int false "Limit (default 10)" default(10)
// @Produce json
// @Success 200 {array} AttemptResponse
// @Router /v1/security/history [get]
func (h *SecurityHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if err := parseIntParam(l, &limit, 1, 100); err != nil {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
	}

	attempts, err := h.aggregation.RecentHistory(r.Context(), accountID, limit)
	if err != nil {
		h.writeServiceError(w, r, "failed to load history", err)
		return
	}

	resp := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, attemptModelToResponse(a))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetRiskTrend returns per-day average risk over the trailing window
//
// @Summary Daily risk trend
// @Param days query int false "Days (default 6)" default(6)
// @Produce json
// @Success 200 {array} TrendPointResponse
// @Router /v1/security/risk-trend [get]
func (h *SecurityHandler) GetRiskTrend(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	days := 0
	if d := r.URL.Query().Get("days"); d != "" {
		if err := parseIntParam(d, &days, 1, 90); err != nil {
			httputil.WriteBadRequest(w, "Invalid days parameter")
			return
		}
	}

	points, err := h.aggregation.RiskTrend(r.Context(), accountID, days)
	if err != nil {
		h.writeServiceError(w, r, "failed to load risk trend", err)
		return
	}

	resp := make([]*TrendPointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, &TrendPointResponse{
			Day:         p.Day.Format("2006-01-02"),
			AverageRisk: p.AverageRisk,
			Attempts:    p.Attempts,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetSessions lists the account's trusted devices, flagging the caller's
// current one. The client reports its own fingerprint via the
// X-Device-Fingerprint header, the same value it submits with login
// attempts. Without the header we fall back to fingerprinting the request
// headers, which only matches devices that logged in with header-only
// signals.
//
// @Summary Active sessions
// @Param X-Device-Fingerprint header string false "Caller's device fingerprint"
// @Produce json
// @Success 200 {array} SessionResponse
// @Router /v1/security/sessions [get]
func (h *SecurityHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	currentFingerprint := r.Header.Get("X-Device-Fingerprint")
	if currentFingerprint == "" {
		device, err := fingerprint.Resolve(fingerprint.Signals{
			UserAgent:      r.UserAgent(),
			AcceptLanguage: r.Header.Get("Accept-Language"),
		})
		if err == nil {
			currentFingerprint = device.Fingerprint
		}
	}

	sessions, err := h.aggregation.ActiveSessions(r.Context(), accountID, currentFingerprint)
	if err != nil {
		h.writeServiceError(w, r, "failed to load sessions", err)
		return
	}

	resp := make([]*SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionToResponse(s))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// PromoteDevice marks a previously seen device as trusted
//
// @Summary Trust a device
// @Accept json
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /v1/security/devices/promote [post]
func (h *SecurityHandler) PromoteDevice(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PromoteDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	device, err := h.trust.Promote(r.Context(), accountID, req.Fingerprint)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			httputil.WriteNotFound(w, "Device has never been seen on this account")
			return
		}
		h.writeServiceError(w, r, "failed to promote device", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sessionToResponse(services.ActiveSession{Device: device}))
}

// RevokeDevice removes a device from the trust store
//
// @Summary Revoke a device
// @Param id path string true "Device ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /v1/security/devices/{id} [delete]
func (h *SecurityHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	deviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid device ID")
		return
	}

	if err := h.trust.Revoke(r.Context(), accountID, deviceID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			httputil.WriteNotFound(w, "Device not found")
			return
		}
		h.writeServiceError(w, r, "failed to revoke device", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAlerts lists the account's security alerts
//
// @Summary Security alerts
// @Param unread query bool false "Only unread alerts"
// @Param limit query int false "Limit (default 20)" default(20)
// @Produce json
// @Success 200 {array} AlertResponse
// @Router /v1/security/alerts [get]
func (h *SecurityHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if err := parseIntParam(l, &limit, 1, 100); err != nil {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
	}

	alerts, err := h.alerts.ListAlerts(r.Context(), accountID, unreadOnly, limit)
	if err != nil {
		h.writeServiceError(w, r, "failed to load alerts", err)
		return
	}

	resp := make([]*AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, alertModelToResponse(a))
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// MarkAlertRead acknowledges one alert
//
// @Summary Mark alert read
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /v1/security/alerts/{id}/read [post]
func (h *SecurityHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid alert ID")
		return
	}

	if err := h.alerts.MarkAlertRead(r.Context(), accountID, alertID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			httputil.WriteNotFound(w, "Alert not found")
			return
		}
		h.writeServiceError(w, r, "failed to mark alert read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns the 30-day account summary
//
// @Summary Account security summary
// @Produce json
// @Success 200 {object} SummaryResponse
// @Router /v1/security/summary [get]
func (h *SecurityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.GetAccountID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	summary, err := h.aggregation.AccountSummary(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load summary", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SummaryResponse{
		LoginsLast30Days: summary.LoginsLast30Days,
		SuspiciousLast30: summary.SuspiciousLast30,
		UnreadAlerts:     summary.UnreadAlerts,
		TrustedDevices:   summary.TrustedDevices,
	})
}

func (h *SecurityHandler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnavailableDependency):
		httputil.WriteServiceUnavailable(w, "A required dependency is unavailable")
	default:
		h.logger.Error(msg,
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httputil.WriteInternalError(w, "Internal server error")
	}
}
