package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/swift-shaadi/gateway/internal/domain"
)

// httpError maps a service error onto the response. Identity-service
// failures with a status are passed through with their original body.
func httpError(w http.ResponseWriter, err error) {
	var de *domain.DownstreamError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, domain.ErrOTPNotFound):
		writeError(w, http.StatusBadRequest, CodeOTPNotFound, "No OTP found for this phone. Please request a new one.")
	case errors.Is(err, domain.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, CodeOTPExpired, "OTP has expired. Please request a new one.")
	case errors.Is(err, domain.ErrOTPMismatch):
		writeError(w, http.StatusBadRequest, CodeOTPMismatch, "Invalid OTP. Please check the code and try again.")
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, CodeTokenInvalid, "Invalid or expired verification token. Please verify your phone again.")
	case errors.Is(err, domain.ErrSMSFailed):
		writeError(w, http.StatusBadGateway, CodeSMSFailed, "Failed to send OTP. Please try again.")
	case errors.As(err, &de) && errors.Is(err, domain.ErrIdentityFailed) && de.Status != 0:
		writeRaw(w, de.Status, de.ContentType, nil, de.Body)
	case errors.Is(err, domain.ErrIdentityFailed):
		slog.Error("identity service unreachable", "err", err)
		writeError(w, http.StatusBadGateway, CodeIdentityUnavailable, "Authentication service unavailable. Please try again later.")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// writeRaw writes an upstream body unchanged with its status, content type
// and Set-Cookie values. An empty content type is sent as JSON.
func writeRaw(w http.ResponseWriter, status int, contentType string, cookies []string, body []byte) {
	for _, c := range cookies {
		w.Header().Add("Set-Cookie", c)
	}
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
