package phoneauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swift-shaadi/gateway/internal/domain"
	"github.com/swift-shaadi/gateway/internal/infrastructure/memory"
	"github.com/swift-shaadi/gateway/internal/metrics"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, phone, msg string) error {
	return m.Called(ctx, phone, msg).Error(0)
}

type mockIdentity struct{ mock.Mock }

func (m *mockIdentity) ExchangePhone(ctx context.Context, phone, name string) (*domain.IdentityResult, error) {
	args := m.Called(ctx, phone, name)
	if r, _ := args.Get(0).(*domain.IdentityResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// codeSeq hands out codes in order.
func codeSeq(codes ...string) func(int) (string, error) {
	var mu sync.Mutex
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return "", errors.New("no more codes")
		}
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
}

// --- builder ---

const phone = "+15551234567"

type harness struct {
	svc      Service
	clock    *fakeClock
	otps     *memory.OTPRepo
	tokens   *memory.TokenRepo
	sms      *mockSMSSender
	identity *mockIdentity
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)},
		otps:     memory.NewOTPRepo(),
		tokens:   memory.NewTokenRepo(),
		sms:      &mockSMSSender{},
		identity: &mockIdentity{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	h.svc = NewService(ServiceDeps{
		OTPs:     h.otps,
		Tokens:   h.tokens,
		SMS:      h.sms,
		Identity: h.identity,
		Metrics:  h.metrics,
		Settings: Settings{
			OTPLength:     6,
			OTPTTL:        5 * time.Minute,
			TokenTTL:      10 * time.Minute,
			HashCost:      bcrypt.MinCost,
			MaxExchanges:  5,
			MessageFormat: "Your code is %s",
		},
		Now:     h.clock.Now,
		NewCode: codeSeq(codes...),
	})
	return h
}

func (h *harness) expectSMS(code string) {
	h.sms.On("SendSMS", mock.Anything, phone, "Your code is "+code).Return(nil).Once()
}

func (h *harness) issue(t *testing.T, code string) {
	t.Helper()
	h.expectSMS(code)
	require.NoError(t, h.svc.RequestOTP(context.Background(), phone))
}

// --- RequestOTP ---

func TestRequestOTP_MissingPhone(t *testing.T) {
	h := newHarness(t, "111111")
	err := h.svc.RequestOTP(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Equal(t, 0, h.otps.Len())
	h.sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestOTP_SendsCode(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	h.sms.AssertExpectations(t)
	assert.Equal(t, 1, h.otps.Len())
	rec, err := h.otps.Get(context.Background(), phone, h.clock.Now())
	require.NoError(t, err)
	assert.NotEqual(t, []byte("482193"), rec.CodeHash, "code is stored hashed")
	assert.Equal(t, h.clock.Now().Add(5*time.Minute), rec.ExpiresAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OTPRequests.WithLabelValues("sent")))
}

func TestRequestOTP_SMSFailureKeepsRecord(t *testing.T) {
	h := newHarness(t, "123456")
	h.sms.On("SendSMS", mock.Anything, phone, mock.Anything).Return(errors.New("throttled"))

	err := h.svc.RequestOTP(context.Background(), phone)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSMSFailed)
	assert.NotErrorIs(t, err, domain.ErrBadRequest)
	var de *domain.DownstreamError
	assert.True(t, errors.As(err, &de))

	// The stored code is still redeemable.
	tok, err := h.svc.VerifyOTP(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestRequestOTP_NoSender(t *testing.T) {
	h := newHarness(t, "123456")
	svc := NewService(ServiceDeps{
		OTPs: h.otps, Tokens: h.tokens, Metrics: h.metrics,
		Settings: Settings{OTPLength: 6, OTPTTL: time.Minute, HashCost: bcrypt.MinCost, MessageFormat: "%s"},
		NewCode:  codeSeq("123456"),
	})
	err := svc.RequestOTP(context.Background(), phone)
	assert.ErrorIs(t, err, domain.ErrSMSFailed)
}

func TestRequestOTP_CodeGeneratorError(t *testing.T) {
	h := newHarness(t) // no codes
	err := h.svc.RequestOTP(context.Background(), phone)
	require.Error(t, err)
	assert.Equal(t, 0, h.otps.Len())
}

// --- VerifyOTP ---

func TestVerifyOTP_MissingFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyOTP(context.Background(), phone, "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	_, err = h.svc.VerifyOTP(context.Background(), "", "123456")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerifyOTP_NeverIssued(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyOTP(context.Background(), phone, "123456")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestVerifyOTP_OverwriteInvalidatesOlderCode(t *testing.T) {
	h := newHarness(t, "111111", "222222")
	h.issue(t, "111111")
	h.issue(t, "222222")

	_, err := h.svc.VerifyOTP(context.Background(), phone, "111111")
	assert.ErrorIs(t, err, domain.ErrOTPMismatch)

	tok, err := h.svc.VerifyOTP(context.Background(), phone, "222222")
	require.NoError(t, err)
	assert.Len(t, tok, 64)
}

func TestVerifyOTP_ExpiredThenNotFound(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	h.clock.Advance(5*time.Minute + time.Second)
	_, err := h.svc.VerifyOTP(context.Background(), phone, "482193")
	assert.ErrorIs(t, err, domain.ErrOTPExpired)

	_, err = h.svc.VerifyOTP(context.Background(), phone, "482193")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestVerifyOTP_AtExactExpiryStillValid(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	h.clock.Advance(5 * time.Minute)
	_, err := h.svc.VerifyOTP(context.Background(), phone, "482193")
	assert.NoError(t, err)
}

func TestVerifyOTP_MismatchKeepsRecord(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	_, err := h.svc.VerifyOTP(context.Background(), phone, "000000")
	assert.ErrorIs(t, err, domain.ErrOTPMismatch)
	assert.Equal(t, 1, h.otps.Len())

	h.clock.Advance(4 * time.Minute)
	_, err = h.svc.VerifyOTP(context.Background(), phone, "482193")
	assert.NoError(t, err)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	_, err := h.svc.VerifyOTP(context.Background(), phone, "482193")
	require.NoError(t, err)

	_, err = h.svc.VerifyOTP(context.Background(), phone, "482193")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	_, err = h.svc.VerifyOTP(context.Background(), phone, "999999")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestVerifyOTP_ConcurrentSameCodeOneWinner(t *testing.T) {
	h := newHarness(t, "482193")
	h.issue(t, "482193")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.VerifyOTP(context.Background(), phone, "482193")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, h.tokens.Len())
}

// --- CompletePhoneAuth ---

func verified(t *testing.T, h *harness) string {
	t.Helper()
	h.issue(t, "482193")
	tok, err := h.svc.VerifyOTP(context.Background(), phone, "482193")
	require.NoError(t, err)
	return tok
}

func TestCompletePhoneAuth_MissingToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CompletePhoneAuth(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCompletePhoneAuth_UnknownToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CompletePhoneAuth(context.Background(), "deadbeef", "")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	h.identity.AssertNotCalled(t, "ExchangePhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompletePhoneAuth_ExpiredToken(t *testing.T) {
	h := newHarness(t, "482193")
	tok := verified(t, h)

	h.clock.Advance(10*time.Minute + time.Second)
	_, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.Equal(t, 0, h.tokens.Len())
}

func TestCompletePhoneAuth_EndToEndExistingUser(t *testing.T) {
	h := newHarness(t, "482193")
	tok := verified(t, h)

	session := &domain.IdentityResult{Status: 200, Body: []byte(`{"user":{"id":"u1"}}`), Cookies: []string{"session_id=s1; HttpOnly"}}
	h.identity.On("ExchangePhone", mock.Anything, phone, "").Return(session, nil).Once()

	res, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
	require.NoError(t, err)
	assert.Equal(t, session, res)

	_, err = h.svc.CompletePhoneAuth(context.Background(), tok, "")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	h.identity.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PhoneExchanges.WithLabelValues("existing_user")))
}

func TestCompletePhoneAuth_NewUserWithoutNameRetainsToken(t *testing.T) {
	h := newHarness(t, "482193")
	tok := verified(t, h)

	h.identity.On("ExchangePhone", mock.Anything, phone, "").
		Return(&domain.IdentityResult{Status: 200, IsNewUser: true}, nil).Once()
	h.identity.On("ExchangePhone", mock.Anything, phone, "Asha").
		Return(&domain.IdentityResult{Status: 200, IsNewUser: true}, nil).Once()

	res, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.Equal(t, 1, h.tokens.Len(), "token kept for the name step")

	res, err = h.svc.CompletePhoneAuth(context.Background(), tok, "  Asha ")
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)

	_, err = h.svc.CompletePhoneAuth(context.Background(), tok, "Asha")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	h.identity.AssertExpectations(t)
}

func TestCompletePhoneAuth_IdentityErrorKeepsToken(t *testing.T) {
	h := newHarness(t, "482193")
	tok := verified(t, h)

	downstream := &domain.DownstreamError{Kind: domain.ErrIdentityFailed, Status: 500, Body: []byte(`{"detail":"db"}`)}
	h.identity.On("ExchangePhone", mock.Anything, phone, "").Return(nil, downstream).Once()
	h.identity.On("ExchangePhone", mock.Anything, phone, "").
		Return(&domain.IdentityResult{Status: 200}, nil).Once()

	_, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
	var de *domain.DownstreamError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 500, de.Status)

	_, err = h.svc.CompletePhoneAuth(context.Background(), tok, "")
	require.NoError(t, err)
	assert.Equal(t, 0, h.tokens.Len())
}

func TestCompletePhoneAuth_ExchangeBound(t *testing.T) {
	h := newHarness(t, "482193")
	tok := verified(t, h)

	h.identity.On("ExchangePhone", mock.Anything, phone, "").
		Return(&domain.IdentityResult{Status: 200, IsNewUser: true}, nil).Times(5)

	for i := 0; i < 5; i++ {
		_, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
		require.NoError(t, err)
	}
	_, err := h.svc.CompletePhoneAuth(context.Background(), tok, "")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	h.identity.AssertExpectations(t)
}

// --- Sweep ---

func TestSweep_RemovesExpiredWithoutAccess(t *testing.T) {
	h := newHarness(t, "482193", "555555")
	verified(t, h)
	h.issue(t, "555555")

	h.clock.Advance(6 * time.Minute)
	res := h.svc.Sweep(context.Background(), h.clock.Now())
	assert.Equal(t, SweepResult{OTPs: 1, Tokens: 0}, res)
	assert.Equal(t, 0, h.otps.Len())
	assert.Equal(t, 1, h.tokens.Len())

	h.clock.Advance(5 * time.Minute)
	res = h.svc.Sweep(context.Background(), h.clock.Now())
	assert.Equal(t, SweepResult{OTPs: 0, Tokens: 1}, res)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SweptRecords.WithLabelValues("token")))
}
