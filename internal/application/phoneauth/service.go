package phoneauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/swift-shaadi/gateway/internal/domain"
	"github.com/swift-shaadi/gateway/internal/infrastructure/sns"
	"github.com/swift-shaadi/gateway/internal/metrics"
	"github.com/swift-shaadi/gateway/internal/pkg/mask"
	pkgtoken "github.com/swift-shaadi/gateway/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// OTPStore holds at most one pending OTP per phone.
type OTPStore interface {
	Put(ctx context.Context, rec domain.OTPRecord) error
	Get(ctx context.Context, phone string, now time.Time) (domain.OTPRecord, error)
	ConsumeIf(ctx context.Context, phone string, codeHash []byte) bool
	Sweep(ctx context.Context, now time.Time) int
}

// TokenStore holds verification tokens awaiting an identity exchange.
type TokenStore interface {
	Put(ctx context.Context, t domain.VerificationToken) error
	Acquire(ctx context.Context, token string, now time.Time, maxUses int) (domain.VerificationToken, error)
	Delete(ctx context.Context, token string) error
	Sweep(ctx context.Context, now time.Time) int
}

// IdentityExchanger logs in or creates the user for a verified phone.
type IdentityExchanger interface {
	ExchangePhone(ctx context.Context, phone, name string) (*domain.IdentityResult, error)
}

// Settings are the handshake's tunables.
type Settings struct {
	OTPLength     int
	OTPTTL        time.Duration
	TokenTTL      time.Duration
	HashCost      int
	MaxExchanges  int    // per verification token; 0 means unbounded
	MessageFormat string // must contain one %s for the code
}

// ServiceDeps bundles the collaborators. Now, NewCode and NewToken default
// to the wall clock and crypto/rand generators; a nil Metrics records to a
// private registry.
type ServiceDeps struct {
	OTPs     OTPStore
	Tokens   TokenStore
	SMS      sns.SMSSender // nil makes every send fail with domain.ErrSMSFailed
	Identity IdentityExchanger
	Metrics  *metrics.Metrics
	Settings Settings

	Now      func() time.Time
	NewCode  func(n int) (string, error)
	NewToken func() (string, error)
}

// SweepResult counts the records one sweep removed.
type SweepResult struct {
	OTPs   int
	Tokens int
}

type Service interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (token string, err error)
	CompletePhoneAuth(ctx context.Context, token, name string) (*domain.IdentityResult, error)
	Sweep(ctx context.Context, now time.Time) SweepResult
	Now() time.Time
}

type service struct {
	otps     OTPStore
	tokens   TokenStore
	sms      sns.SMSSender
	identity IdentityExchanger
	metrics  *metrics.Metrics
	settings Settings

	now      func() time.Time
	newCode  func(n int) (string, error)
	newToken func() (string, error)
}

var errNoSender = errors.New("sms sender not configured")

func NewService(d ServiceDeps) Service {
	s := &service{
		otps:     d.OTPs,
		tokens:   d.Tokens,
		sms:      d.SMS,
		identity: d.Identity,
		metrics:  d.Metrics,
		settings: d.Settings,
		now:      d.Now,
		newCode:  d.NewCode,
		newToken: d.NewToken,
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = pkgtoken.NewNumericCode
	}
	if s.newToken == nil {
		s.newToken = pkgtoken.NewVerificationToken
	}
	return s
}

func (s *service) Now() time.Time { return s.now() }

// RequestOTP stores a fresh code for phone, replacing any pending one, and
// texts it. A failed send leaves the stored code in place.
func (s *service) RequestOTP(ctx context.Context, phone string) error {
	if strings.TrimSpace(phone) == "" {
		s.metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return fmt.Errorf("phone is required: %w", domain.ErrBadRequest)
	}

	code, err := s.newCode(s.settings.OTPLength)
	if err != nil {
		s.metrics.OTPRequests.WithLabelValues("error").Inc()
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.settings.HashCost)
	if err != nil {
		s.metrics.OTPRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("hash otp: %w", err)
	}
	rec := domain.OTPRecord{
		Phone:     phone,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(s.settings.OTPTTL),
	}
	if err := s.otps.Put(ctx, rec); err != nil {
		s.metrics.OTPRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("store otp: %w", err)
	}

	if s.sms == nil {
		s.metrics.OTPRequests.WithLabelValues("sms_failed").Inc()
		slog.Warn("otp not sent", "phone", mask.Phone(phone), "err", errNoSender)
		return &domain.DownstreamError{Kind: domain.ErrSMSFailed, Err: errNoSender}
	}
	if err := s.sms.SendSMS(ctx, phone, fmt.Sprintf(s.settings.MessageFormat, code)); err != nil {
		s.metrics.OTPRequests.WithLabelValues("sms_failed").Inc()
		slog.Warn("otp sms dispatch failed", "phone", mask.Phone(phone), "err", err)
		return &domain.DownstreamError{Kind: domain.ErrSMSFailed, Err: err}
	}
	s.metrics.OTPRequests.WithLabelValues("sent").Inc()
	slog.Info("otp sent", "phone", mask.Phone(phone))
	return nil
}

// VerifyOTP consumes the pending code for phone and mints a verification token.
// A mismatch keeps the code so the caller can retry until it expires.
func (s *service) VerifyOTP(ctx context.Context, phone, code string) (string, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(code) == "" {
		s.metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("phone and otp are required: %w", domain.ErrBadRequest)
	}

	now := s.now()
	rec, err := s.otps.Get(ctx, phone, now)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOTPExpired):
			s.metrics.OTPVerifications.WithLabelValues("expired").Inc()
		case errors.Is(err, domain.ErrOTPNotFound):
			s.metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		default:
			s.metrics.OTPVerifications.WithLabelValues("error").Inc()
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(rec.CodeHash, []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
			return "", fmt.Errorf("verify otp: %w", domain.ErrOTPMismatch)
		}
		s.metrics.OTPVerifications.WithLabelValues("error").Inc()
		return "", fmt.Errorf("compare otp: %w", err)
	}

	// Another verifier may have consumed the record, or a newer OTP replaced
	// it, between Get and here.
	if !s.otps.ConsumeIf(ctx, phone, rec.CodeHash) {
		s.metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		return "", fmt.Errorf("otp already used: %w", domain.ErrOTPNotFound)
	}

	tok, err := s.newToken()
	if err != nil {
		s.metrics.OTPVerifications.WithLabelValues("error").Inc()
		return "", err
	}
	if err := s.tokens.Put(ctx, domain.VerificationToken{
		Token:     tok,
		Phone:     phone,
		ExpiresAt: now.Add(s.settings.TokenTTL),
	}); err != nil {
		s.metrics.OTPVerifications.WithLabelValues("error").Inc()
		return "", fmt.Errorf("store verification token: %w", err)
	}
	s.metrics.OTPVerifications.WithLabelValues("ok").Inc()
	slog.Info("otp verified", "phone", mask.Phone(phone))
	return tok, nil
}

// CompletePhoneAuth redeems token with the identity service. The token stays
// valid when the service reports a new user and no name was given, so a
// follow-up call can supply one; every other successful exchange deletes it.
// Failed exchanges also keep the token for a retry.
func (s *service) CompletePhoneAuth(ctx context.Context, token, name string) (*domain.IdentityResult, error) {
	if strings.TrimSpace(token) == "" {
		s.metrics.PhoneExchanges.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("verificationToken is required: %w", domain.ErrBadRequest)
	}
	name = strings.TrimSpace(name)

	vt, err := s.tokens.Acquire(ctx, token, s.now(), s.settings.MaxExchanges)
	if err != nil {
		s.metrics.PhoneExchanges.WithLabelValues("token_invalid").Inc()
		return nil, err
	}

	res, err := s.identity.ExchangePhone(ctx, vt.Phone, name)
	if err != nil {
		s.metrics.PhoneExchanges.WithLabelValues("identity_error").Inc()
		slog.Warn("identity exchange failed", "phone", mask.Phone(vt.Phone), "attempt", vt.Uses, "err", err)
		return nil, err
	}

	if res.IsNewUser && name == "" {
		s.metrics.PhoneExchanges.WithLabelValues("name_pending").Inc()
		slog.Info("new user needs name, keeping verification token", "phone", mask.Phone(vt.Phone))
		return res, nil
	}

	if err := s.tokens.Delete(ctx, token); err != nil {
		slog.Warn("failed to delete verification token", "phone", mask.Phone(vt.Phone), "err", err)
	}
	if res.IsNewUser {
		s.metrics.PhoneExchanges.WithLabelValues("new_user").Inc()
	} else {
		s.metrics.PhoneExchanges.WithLabelValues("existing_user").Inc()
	}
	return res, nil
}

// Sweep removes every OTP and token that expired before now.
func (s *service) Sweep(ctx context.Context, now time.Time) SweepResult {
	res := SweepResult{
		OTPs:   s.otps.Sweep(ctx, now),
		Tokens: s.tokens.Sweep(ctx, now),
	}
	s.metrics.SweptRecords.WithLabelValues("otp").Add(float64(res.OTPs))
	s.metrics.SweptRecords.WithLabelValues("token").Add(float64(res.Tokens))
	return res
}
