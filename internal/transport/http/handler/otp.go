package handler

import (
	"encoding/json"
	"net/http"

	"github.com/swift-shaadi/gateway/internal/application/phoneauth"
	"github.com/swift-shaadi/gateway/internal/pkg/validate"
)

// OTPHandler serves the send and verify steps of the phone handshake.
type OTPHandler struct {
	svc phoneauth.Service
}

func NewOTPHandler(svc phoneauth.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req phoneauth.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if err := h.svc.RequestOTP(r.Context(), req.Phone); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "OTP sent successfully"})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req phoneauth.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	token, err := h.svc.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPVerifiedEnvelope{Success: true, Phone: req.Phone, VerificationToken: token})
}
