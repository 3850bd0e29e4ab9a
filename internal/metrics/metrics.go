package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the handshake counters. Build one per registry with New.
type Metrics struct {
	OTPRequests      *prometheus.CounterVec // result: sent | invalid | sms_failed | error
	OTPVerifications *prometheus.CounterVec // result: ok | invalid | not_found | expired | mismatch | error
	PhoneExchanges   *prometheus.CounterVec // result: existing_user | new_user | name_pending | invalid | token_invalid | identity_error
	SweptRecords     *prometheus.CounterVec // store: otp | token
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_otp_requests_total",
			Help: "OTP send requests by outcome.",
		}, []string{"result"}),
		OTPVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_otp_verifications_total",
			Help: "OTP verification attempts by outcome.",
		}, []string{"result"}),
		PhoneExchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_phone_auth_exchanges_total",
			Help: "Verification-token exchanges against the identity service by outcome.",
		}, []string{"result"}),
		SweptRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_swept_records_total",
			Help: "Expired records removed by the background sweep.",
		}, []string{"store"}),
	}
}

// RegisterStoreGauges exposes the live size of both handshake stores.
func RegisterStoreGauges(reg prometheus.Registerer, pendingOTPs, liveTokens func() int) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gateway_pending_otps",
		Help: "OTP records currently stored.",
	}, func() float64 { return float64(pendingOTPs()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gateway_live_verification_tokens",
		Help: "Verification tokens currently stored.",
	}, func() float64 { return float64(liveTokens()) })
}
