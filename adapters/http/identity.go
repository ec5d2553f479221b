// Package http provides the metering middleware and the reporting API.
package http

import (
	"net/http"

	"github.com/metercore/metercore/app"
	"github.com/metercore/metercore/config"
)

// ExtractRequestContext pulls the caller identity fields out of a request
// using the configured header names. Every field is optional; a request
// with none of them yields a valid, anonymous context.
func ExtractRequestContext(r *http.Request, auth config.AuthConfig) app.RequestContext {
	return app.RequestContext{
		CustomerID:   r.Header.Get(auth.CustomerHeader),
		TeamID:       r.Header.Get(auth.TeamHeader),
		Organization: r.Header.Get(auth.OrgHeader),
		APIKey:       extractAPIKey(r, auth),
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		UserAgent:    r.UserAgent(),
	}
}

// extractAPIKey reads the raw API key from the configured header, falling
// back to the query parameter. Used only to compute the credential digest.
func extractAPIKey(r *http.Request, auth config.AuthConfig) string {
	if key := r.Header.Get(auth.KeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(auth.KeyQueryParam)
}
