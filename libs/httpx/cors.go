package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS tags responses for allowed origins and answers preflights with 204.
// With no usable AllowedOrigins it is a no-op. An entry is "*", an exact origin, or a
// wildcard subdomain such as "https://*.iglesia.org".
func WithCORS(cfg CORSPolicy) Middleware {
	origins := compileOrigins(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	fixed := preflightHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow := origins.allow(origin, cfg.AllowCredentials)
			if allow == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			for k, v := range fixed {
				h[k] = v
			}
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func preflightHeaders(cfg CORSPolicy) http.Header {
	h := http.Header{}
	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if v := joinTrimmed(cfg.AllowedMethods); v != "" {
		h.Set("Access-Control-Allow-Methods", v)
	}
	if v := joinTrimmed(cfg.AllowedHeaders); v != "" {
		h.Set("Access-Control-Allow-Headers", v)
	}
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	return h
}

func joinTrimmed(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}

// originRule matches one configured entry. For wildcard entries prefix is the scheme
// ("https://") and suffix the parent domain (".iglesia.org").
type originRule struct {
	any      bool
	exact    string
	prefix   string
	suffix   string
	wildcard bool
}

type originRules []originRule

func compileOrigins(entries []string) originRules {
	var rules originRules
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case e == "":
		case e == "*":
			rules = append(rules, originRule{any: true})
		default:
			if scheme, parent, ok := strings.Cut(e, "://*."); ok {
				rules = append(rules, originRule{wildcard: true, prefix: scheme + "://", suffix: "." + parent})
			} else {
				rules = append(rules, originRule{exact: e})
			}
		}
	}
	return rules
}

// allow returns the Access-Control-Allow-Origin value for origin, or "" to skip CORS.
// A "*" entry echoes the origin when credentials are allowed, since browsers reject "*" then.
func (rules originRules) allow(origin string, credentials bool) string {
	if origin == "" {
		return ""
	}
	o := strings.ToLower(origin)
	for _, rule := range rules {
		switch {
		case rule.any:
			if credentials {
				return origin
			}
			return "*"
		case rule.wildcard:
			if !strings.HasPrefix(o, rule.prefix) || !strings.HasSuffix(o, rule.suffix) {
				continue
			}
			host := strings.TrimSuffix(strings.TrimPrefix(o, rule.prefix), rule.suffix)
			if host != "" && !strings.Contains(host, "/") {
				return origin
			}
		case o == rule.exact:
			return origin
		}
	}
	return ""
}
