package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/internal/services"
	httputil "github.com/secureauth/sentinel/pkg/http"
)

// AttemptHandler ingests raw authentication outcomes from the upstream
// provider and runs them through the scoring pipeline.
type AttemptHandler struct {
	login    *services.LoginService
	ipConfig *httputil.IPConfig
	logger   *slog.Logger
}

func NewAttemptHandler(login *services.LoginService, ipConfig *httputil.IPConfig, logger *slog.Logger) *AttemptHandler {
	return &AttemptHandler{
		login:    login,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request/Response DTOs

// SignalsRequest carries the raw client hints captured with the attempt
type SignalsRequest struct {
	UserAgent        string `json:"user_agent"`
	AcceptLanguage   string `json:"accept_language"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
}

// SubmitAttemptRequest represents the request body for recording an attempt
type SubmitAttemptRequest struct {
	AccountID string         `json:"account_id" validate:"required,uuid"`
	Status    string         `json:"status" validate:"required,oneof=success failed mfa_required"`
	IPAddress string         `json:"ip_address" validate:"omitempty,ip"`
	Signals   SignalsRequest `json:"signals"`
}

// AttemptResponse represents a ledger entry in the HTTP response
type AttemptResponse struct {
	ID                string  `json:"id"`
	CreatedAt         string  `json:"created_at"`
	IPAddress         string  `json:"ip_address"`
	Country           *string `json:"country,omitempty"`
	City              *string `json:"city,omitempty"`
	ISP               *string `json:"isp,omitempty"`
	Browser           string  `json:"browser"`
	OS                string  `json:"os"`
	DeviceClass       string  `json:"device_class"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	RiskScore         int     `json:"risk_score"`
	IsSuspicious      bool    `json:"is_suspicious"`
	Status            string  `json:"status"`
}

// SubmitAttemptResponse represents the outcome of the scoring pipeline
type SubmitAttemptResponse struct {
	Attempt      *AttemptResponse `json:"attempt"`
	DeviceWasNew bool             `json:"device_was_new"`
	Alert        *AlertResponse   `json:"alert,omitempty"`
}

func attemptModelToResponse(a *models.LoginAttempt) *AttemptResponse {
	return &AttemptResponse{
		ID:                a.ID.String(),
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
		IPAddress:         a.IPAddress,
		Country:           a.Country,
		City:              a.City,
		ISP:               a.ISP,
		Browser:           a.Browser,
		OS:                a.OS,
		DeviceClass:       a.DeviceClass,
		DeviceFingerprint: a.DeviceFingerprint,
		RiskScore:         a.RiskScore,
		IsSuspicious:      a.IsSuspicious,
		Status:            string(a.Status),
	}
}

// SubmitAttempt records and scores one authentication attempt
//
// @Summary Record an authentication attempt
// @Accept json
// @Produce json
// @Success 201 {object} SubmitAttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /v1/attempts [post]
func (h *AttemptHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid account ID")
		return
	}

	// Provider-reported client IP wins over the transport-level address,
	// which is usually the provider itself.
	ip := req.IPAddress
	if ip == "" {
		ip = httputil.ExtractClientIP(r, h.ipConfig)
	}

	result, err := h.login.SubmitAttempt(r.Context(), services.SubmitAttemptInput{
		AccountID: accountID,
		Status:    models.LoginStatus(req.Status),
		IPAddress: ip,
		Signals: fingerprint.Signals{
			UserAgent:        req.Signals.UserAgent,
			AcceptLanguage:   req.Signals.AcceptLanguage,
			ScreenResolution: req.Signals.ScreenResolution,
			Timezone:         req.Signals.Timezone,
		},
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("failed to record attempt",
			slog.String("account_id", req.AccountID),
			slog.Any("error", err))
		httputil.WriteInternalError(w, "Failed to record attempt")
		return
	}

	resp := SubmitAttemptResponse{
		Attempt:      attemptModelToResponse(result.Attempt),
		DeviceWasNew: result.DeviceWasNew,
	}
	if result.Alert != nil {
		resp.Alert = alertModelToResponse(result.Alert)
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}
