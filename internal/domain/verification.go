package domain

import "time"

// OTPRecord is the pending one-time passcode for a phone number.
// At most one record exists per phone; issuing again overwrites it.
type OTPRecord struct {
	Phone     string
	CodeHash  []byte // bcrypt
	ExpiresAt time.Time
}

// VerificationToken proves a phone passed OTP verification and is redeemed
// against the identity service.
type VerificationToken struct {
	Token     string
	Phone     string
	ExpiresAt time.Time
	Uses      int // identity exchanges attempted so far
}

// Expired is the one expiry predicate shared by access-time checks and the sweep.
func Expired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}
