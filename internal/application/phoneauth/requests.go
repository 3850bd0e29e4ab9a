package phoneauth

// SendOTPRequest is the body of POST /api/otp/send.
type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// VerifyOTPRequest is the body of POST /api/otp/verify.
type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// PhoneAuthRequest is the body of POST /api/auth/phone. Name is only
// needed on the follow-up call for a brand-new user.
type PhoneAuthRequest struct {
	VerificationToken string `json:"verificationToken" validate:"required"`
	Name              string `json:"name,omitempty" validate:"omitempty,max=100"`
}
