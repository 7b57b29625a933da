package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecurityHeaders sets the standard hardening headers. HTTPS redirects are only enforced in
// production, where the service runs behind a TLS terminating proxy.
func SecurityHeaders(production bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		IsDevelopment:         !production,
	})

	return sec.Handler
}
