package auth

import (
	"context"

	"github.com/abdoulgee/skylinee/pkg/models"
)

// Identity is the authorization context supplied with every request: who
// is acting and in which role. The messaging core never authenticates
// beyond this boundary; it only authorizes against it.
type Identity struct {
	ActorID string
	Role    models.Role
}

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	// CustomerKeys are API keys for customer-facing clients; requests with
	// one must also carry a signed actor id.
	CustomerKeys map[string]struct{}
	// AgentKeys are API keys for agent consoles and backend services; the
	// actor id is taken from the X-Actor-ID header unverified.
	AgentKeys map[string]struct{}
	// SigningKeys verify X-Actor-Signature on customer requests.
	SigningKeys map[string]struct{}
}

type ctxIdentityKey struct{}

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFromContext returns the verified identity, or false when the
// request did not pass the gateway.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxIdentityKey{}).(Identity)
	return v, ok
}
