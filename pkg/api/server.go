package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/authn"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Gate decides whether a resolved principal may use the admin endpoints.
// The default gate requires an active admin.
type Gate func(user *identity.User) error

// Options customizes the mounted surface
type Options struct {
	// AuthPrefix is the mount point for self-service endpoints (default /auth)
	AuthPrefix string
	// AdminPrefix is the mount point for admin endpoints (default /admin)
	AdminPrefix string
	// AdminGate overrides the active-admin requirement on admin endpoints
	AdminGate Gate
	// LoginLimiter rate limits the token endpoint when set
	LoginLimiter func(http.Handler) http.Handler
}

// Server holds the handler dependencies
type Server struct {
	service  *authn.Service
	store    identity.Store
	metrics  *observability.Metrics
	validate *validator.Validate
	options  Options
}

// NewServer creates the API server. metrics may be nil.
func NewServer(service *authn.Service, store identity.Store, metrics *observability.Metrics, options Options) *Server {
	if options.AuthPrefix == "" {
		options.AuthPrefix = "/auth"
	}
	if options.AdminPrefix == "" {
		options.AdminPrefix = "/admin"
	}
	if options.AdminGate == nil {
		options.AdminGate = func(user *identity.User) error {
			if err := authn.RequireActive(user); err != nil {
				return err
			}
			return authn.RequireAdmin(user)
		}
	}
	return &Server{
		service:  service,
		store:    store,
		metrics:  metrics,
		validate: validator.New(),
		options:  options,
	}
}

// RegisterRoutes mounts all endpoints on the router
func (s *Server) RegisterRoutes(router *mux.Router) {
	authenticator := middleware.NewAuthenticator(s.service, s.metrics)

	// public self-service endpoints
	router.HandleFunc(s.options.AuthPrefix+"/register", s.register).Methods("POST")

	tokenHandler := http.Handler(http.HandlerFunc(s.token))
	if s.options.LoginLimiter != nil {
		tokenHandler = s.options.LoginLimiter(tokenHandler)
	}
	router.Handle(s.options.AuthPrefix+"/token", tokenHandler).Methods("POST")

	// authenticated self-service endpoints
	authed := router.PathPrefix(s.options.AuthPrefix).Subrouter()
	authed.Use(authenticator.Middleware)
	authed.HandleFunc("/whoami", s.whoami).Methods("GET")
	authed.HandleFunc("/password", s.changePassword).Methods("PUT")

	// admin endpoints
	admin := router.PathPrefix(s.options.AdminPrefix).Subrouter()
	admin.Use(authenticator.Middleware, s.adminGate)
	admin.HandleFunc("/users", s.listUsers).Methods("GET")
	admin.HandleFunc("/users/{ident}", s.getUser).Methods("GET")
	admin.HandleFunc("/users/{ident}", s.updateUser).Methods("PUT")
	admin.HandleFunc("/groups", s.listGroups).Methods("GET")
	admin.HandleFunc("/groups", s.createGroup).Methods("POST")
	admin.HandleFunc("/groups/{ident}", s.getGroup).Methods("GET")
	admin.HandleFunc("/groups/{ident}", s.updateGroup).Methods("PUT")
	admin.HandleFunc("/permissions", s.listPermissions).Methods("GET")
	admin.HandleFunc("/permissions/{ident}", s.getPermission).Methods("GET")
}

// adminGate enforces the configured admin gate on every admin endpoint
func (s *Server) adminGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.Principal(r.Context())
		if !ok {
			writeError(w, identity.NewError(identity.CodeUnauthenticated, "Could not validate credentials"))
			return
		}
		if err := s.options.AdminGate(user); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
