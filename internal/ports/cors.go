package ports

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	corsAllowedMethods = "GET,POST,PUT,DELETE"
	corsAllowedHeaders = "Content-Type, X-User-Id"
	corsMaxAgeSeconds  = "600"
)

// AllowedOrigins matches browser origins against a set of domain suffixes.
// Only https origins are accepted, except for localhost when local origins are enabled.
type AllowedOrigins struct {
	suffixes   []string
	allowLocal bool
}

func NewAllowedOrigins(allowLocal bool, suffixes ...string) (*AllowedOrigins, error) {
	cleaned := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		suffix = strings.TrimSpace(suffix)
		if suffix == "" {
			continue
		}
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
		cleaned = append(cleaned, strings.ToLower(suffix))
	}
	return &AllowedOrigins{
		suffixes:   cleaned,
		allowLocal: allowLocal,
	}, nil
}

func (o *AllowedOrigins) Allows(origin string) bool {
	if o.allowLocal && isLocalOrigin(origin) {
		return true
	}

	host, ok := strings.CutPrefix(origin, "https://")
	if !ok {
		return false
	}
	host = strings.ToLower(host)

	for _, suffix := range o.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func isLocalOrigin(origin string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		host, ok := strings.CutPrefix(origin, scheme)
		if !ok {
			continue
		}
		hostname, port, hasPort := strings.Cut(host, ":")
		if hostname != "localhost" && hostname != "127.0.0.1" {
			return false
		}
		if !hasPort {
			return true
		}
		for _, char := range port {
			if char < '0' || char > '9' {
				return false
			}
		}
		return port != ""
	}
	return false
}

func BuildCORSMiddleware(allowedOrigins *AllowedOrigins) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowedOrigins.Allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
					w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
					w.Header().Set("Access-Control-Max-Age", corsMaxAgeSeconds)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next(w, r)
		}
	}
}

// BuildCORSHandler answers preflight requests for any route
func BuildCORSHandler(allowedOrigins *AllowedOrigins) http.HandlerFunc {
	return BuildCORSMiddleware(allowedOrigins)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
