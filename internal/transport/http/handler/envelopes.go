package handler

import (
	"encoding/json"
	"net/http"
)

// Error codes let clients choose the next step: resend, re-enter, or retry later.
const (
	CodeValidation          = "validation_error"
	CodeOTPNotFound         = "otp_not_found"
	CodeOTPExpired          = "otp_expired"
	CodeOTPMismatch         = "otp_mismatch"
	CodeTokenInvalid        = "token_invalid"
	CodeSMSFailed           = "sms_failed"
	CodeIdentityUnavailable = "identity_unavailable"
	CodeBackendUnavailable  = "backend_unavailable"
	CodeInternal            = "internal_error"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OTPVerifiedEnvelope answers a successful POST /api/otp/verify.
type OTPVerifiedEnvelope struct {
	Success           bool   `json:"success"`
	Phone             string `json:"phone"`
	VerificationToken string `json:"verificationToken"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Success: false, Error: msg, Code: code})
}
