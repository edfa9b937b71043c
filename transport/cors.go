package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin headers for MCP endpoints.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows every origin.
	AllowOrigins []string

	// AllowMethods lists allowed methods.
	// Default: GET, POST, DELETE, OPTIONS
	AllowMethods []string

	// AllowHeaders lists allowed request headers.
	// Default: Content-Type
	AllowHeaders []string

	// ExposeHeaders lists response headers browsers may read.
	ExposeHeaders []string

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool

	// MaxAge is how long preflight results can be cached, in seconds.
	// Zero omits the header.
	MaxAge int
}

// DefaultCORSConfig allows every origin with the methods and headers the
// MCP endpoints accept.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
	}
}

// Apply sets the CORS response headers for a request from origin and
// reports whether the origin is allowed. Disallowed origins get no headers.
func (c CORSConfig) Apply(h http.Header, origin string) bool {
	allowOrigin := c.allowOrigin(origin)
	if allowOrigin == "" {
		return false
	}

	methods := c.AllowMethods
	if len(methods) == 0 {
		methods = DefaultCORSConfig().AllowMethods
	}
	headers := c.AllowHeaders
	if len(headers) == 0 {
		headers = DefaultCORSConfig().AllowHeaders
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if allowOrigin != "*" {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.ExposeHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposeHeaders, ", "))
	}
	return true
}

// ApplyPreflight adds the headers only preflight responses carry.
func (c CORSConfig) ApplyPreflight(h http.Header) {
	if c.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
}

func (c CORSConfig) allowOrigin(origin string) string {
	for _, o := range c.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// CORSHandler wraps an http.Handler with CORS support and answers
// preflight requests with 204.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := config.Apply(w.Header(), r.Header.Get("Origin"))
		if allowed && r.Method == http.MethodOptions {
			config.ApplyPreflight(w.Header())
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
