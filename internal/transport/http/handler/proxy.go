package handler

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/swift-shaadi/gateway/internal/infrastructure/identity"
	"github.com/swift-shaadi/gateway/internal/pkg/id"
)

// BackendProxy forwards every API request the gateway does not serve itself.
// Paths are kept as-is: /api/weddings goes to {backend}/api/weddings.
type BackendProxy struct {
	target *url.URL
	rp     *httputil.ReverseProxy
}

func NewBackendProxy(target *url.URL) *BackendProxy {
	p := &BackendProxy{target: target}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.handleError,
	}
	return p
}

func (p *BackendProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func (p *BackendProxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()
	// Only the gateway's own exchange call may claim a verified phone.
	pr.Out.Header.Del(identity.HeaderPhoneVerified)
	pr.Out.Header.Del(identity.HeaderPhoneAssertion)

	reqID := chimiddleware.GetReqID(pr.In.Context())
	if reqID == "" {
		reqID = id.New()
	}
	pr.Out.Header.Set(chimiddleware.RequestIDHeader, reqID)
	slog.Debug("[proxy] forwarding", "method", pr.In.Method, "path", pr.In.URL.Path, "target", pr.Out.URL.String(), "request_id", reqID)
}

func (p *BackendProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("[proxy] backend request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusBadGateway, CodeBackendUnavailable, "backend unavailable")
}
