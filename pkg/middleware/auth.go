package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/gatehouse/pkg/authn"
	"github.com/platinummonkey/gatehouse/pkg/contextkeys"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Authenticator resolves bearer tokens to principals and injects them into
// the request context. Requests without a valid token are rejected with 401
// and a WWW-Authenticate challenge; the response body never reveals why the
// token was rejected.
type Authenticator struct {
	service *authn.Service
	metrics *observability.Metrics
}

// NewAuthenticator creates the bearer token middleware. metrics may be nil.
func NewAuthenticator(service *authn.Service, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{service: service, metrics: metrics}
}

// Middleware enforces bearer authentication on the wrapped handler
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			a.reject(w, "missing")
			return
		}

		user, err := a.service.ResolveToken(r.Context(), token)
		if err != nil {
			if identity.CodeOf(err) == identity.CodeUnauthenticated {
				a.reject(w, "invalid")
				return
			}
			observability.FromContext(r.Context()).WithError(err).Error("token resolution failed")
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, reason string) {
	if a.metrics != nil {
		a.metrics.TokenFailuresTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteUnauthorized(w, "Could not validate credentials")
}

// bearerToken extracts the token from the Authorization header. The scheme
// comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Principal returns the authenticated user injected by the Authenticator
func Principal(ctx context.Context) (*identity.User, bool) {
	user, ok := ctx.Value(contextkeys.PrincipalKey).(*identity.User)
	return user, ok
}
