package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/logging"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/utils"
)

// tier is the authentication tier an API key grants. Customer-tier keys
// act on behalf of end users; agent-tier keys belong to the console and
// backend services.
type tier int

const (
	tierUnauth tier = iota
	tierCustomer
	tierAgent
)

// Middleware authenticates requests and injects the resolved Identity into
// the request context. CORS, per-key rate limiting and actor signature
// verification all happen here so handlers only ever see an authorized
// identity.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logging.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-Actor-ID,X-Actor-Signature")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// unauthenticated probes and static assets
			if passthrough(r) {
				next.ServeHTTP(w, r)
				return
			}

			tr, key := authenticate(r, cfg)
			if tr == tierUnauth {
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !limiters.Allow(key) {
				logger.Warn("rate_limited", "path", r.URL.Path)
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			id, ok := resolveIdentity(r, tr, cfg)
			if !ok {
				utils.JSONError(w, http.StatusUnauthorized, "missing or invalid actor credentials")
				return
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path, "actor", id.ActorID, "role", string(id.Role))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func passthrough(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := r.URL.Path
	return p == "/healthz" || p == "/readyz" || p == "/metrics" ||
		p == "/openapi.yaml" || strings.HasPrefix(p, "/docs/") ||
		strings.HasPrefix(p, "/uploads/")
}

// resolveIdentity derives the acting {actorId, role} pair. Customer keys
// require an HMAC-signed actor id; agent keys carry an operator id that is
// trusted at this tier. Outgoing agent messages are attributed to the
// agent role regardless of which operator is typing.
func resolveIdentity(r *http.Request, tr tier, cfg SecConfig) (Identity, bool) {
	actorID := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	if actorID == "" || len(actorID) > 128 {
		logger.Warn("missing_actor_id", "path", r.URL.Path, "remote", r.RemoteAddr)
		return Identity{}, false
	}
	switch tr {
	case tierAgent:
		return Identity{ActorID: actorID, Role: models.RoleAgent}, true
	case tierCustomer:
		sig := strings.TrimSpace(r.Header.Get("X-Actor-Signature"))
		if sig == "" {
			logger.Warn("missing_actor_signature", "path", r.URL.Path, "remote", r.RemoteAddr)
			return Identity{}, false
		}
		for k := range cfg.SigningKeys {
			if hmac.Equal([]byte(SignActor(k, actorID)), []byte(sig)) {
				logger.Debug("actor_signature_verified", "actor", actorID)
				return Identity{ActorID: actorID, Role: models.RoleCustomer}, true
			}
		}
		logger.Warn("invalid_actor_signature", "actor", actorID, "path", r.URL.Path)
		return Identity{}, false
	}
	return Identity{}, false
}

// SignActor computes the hex HMAC-SHA256 of an actor id under a signing
// key. The trusted session frontend mints these for customer clients.
func SignActor(key, actorID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(actorID))
	return hex.EncodeToString(mac.Sum(nil))
}

func authenticate(r *http.Request, cfg SecConfig) (tier, string) {
	a := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(a), "bearer ") {
		key = strings.TrimSpace(a[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return tierUnauth, clientIP(r)
	}
	if _, ok := cfg.AgentKeys[key]; ok {
		return tierAgent, key
	}
	if _, ok := cfg.CustomerKeys[key]; ok {
		return tierCustomer, key
	}
	return tierUnauth, key
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
