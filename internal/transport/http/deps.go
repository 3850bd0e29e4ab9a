package http

import (
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/swift-shaadi/gateway/internal/application/phoneauth"
)

// Deps holds everything the router needs.
type Deps struct {
	PhoneAuth phoneauth.Service
	Backend   *url.URL // target for proxied /api traffic
	Registry  *prometheus.Registry
}
