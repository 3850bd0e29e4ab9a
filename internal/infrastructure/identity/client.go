// Package identity talks to the backend's phone login endpoint.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/swift-shaadi/gateway/internal/domain"
)

const (
	// HeaderPhoneVerified marks a request the gateway sends after OTP verification.
	// The backend refuses phone logins without it.
	HeaderPhoneVerified = "X-Phone-Verified"
	// HeaderPhoneAssertion carries a signed JWT naming the verified phone.
	HeaderPhoneAssertion = "X-Phone-Assertion"

	phoneLoginPath = "/api/auth/phone"
	maxBodyBytes   = 1 << 20
)

// AssertionSigner mints the optional X-Phone-Assertion value.
type AssertionSigner interface {
	SignPhone(phone string) (string, error)
}

// Client calls POST {baseURL}/api/auth/phone.
type Client struct {
	baseURL string
	http    *http.Client
	signer  AssertionSigner
}

// NewClient returns a client for baseURL. signer may be nil.
func NewClient(baseURL string, timeout time.Duration, signer AssertionSigner) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		signer:  signer,
	}
}

type phoneLoginRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

type phoneLoginResponse struct {
	IsNewUser bool `json:"isNewUser"`
}

// ExchangePhone logs in or creates the user owning phone. A non-2xx answer is
// returned as *domain.DownstreamError carrying the original status and body.
func (c *Client) ExchangePhone(ctx context.Context, phone, name string) (*domain.IdentityResult, error) {
	payload, err := json.Marshal(phoneLoginRequest{Phone: phone, Name: name})
	if err != nil {
		return nil, fmt.Errorf("marshal phone login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+phoneLoginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build phone login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderPhoneVerified, "true")
	if c.signer != nil {
		assertion, err := c.signer.SignPhone(phone)
		if err != nil {
			return nil, fmt.Errorf("sign phone assertion: %w", err)
		}
		req.Header.Set(HeaderPhoneAssertion, assertion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.DownstreamError{Kind: domain.ErrIdentityFailed, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.DownstreamError{Kind: domain.ErrIdentityFailed, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.DownstreamError{
			Kind:        domain.ErrIdentityFailed,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
	}

	// A body without isNewUser is an existing-user login.
	var parsed phoneLoginResponse
	_ = json.Unmarshal(body, &parsed)

	return &domain.IdentityResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Cookies:     resp.Header.Values("Set-Cookie"),
		IsNewUser:   parsed.IsNewUser,
	}, nil
}
