package handler

import (
	"encoding/json"
	"net/http"

	"github.com/swift-shaadi/gateway/internal/application/phoneauth"
	"github.com/swift-shaadi/gateway/internal/pkg/validate"
)

// PhoneAuthHandler redeems a verification token for a backend session.
type PhoneAuthHandler struct {
	svc phoneauth.Service
}

func NewPhoneAuthHandler(svc phoneauth.Service) *PhoneAuthHandler {
	return &PhoneAuthHandler{svc: svc}
}

// Complete relays the identity service's status, body and session cookie unchanged.
func (h *PhoneAuthHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req phoneauth.PhoneAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	res, err := h.svc.CompletePhoneAuth(r.Context(), req.VerificationToken, req.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	writeRaw(w, res.Status, res.ContentType, res.Cookies, res.Body)
}
