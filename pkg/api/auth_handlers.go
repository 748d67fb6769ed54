package api

import (
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/authn"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/middleware"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}

	user, err := s.service.Register(r.Context(), req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	httputil.WriteCreated(w, user)
}

// token handles POST /auth/token. The request is an OAuth2-style password
// grant form: username (the email) and password.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteUnprocessable(w, "invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		httputil.WriteUnprocessable(w, "username and password are required")
		return
	}

	token, err := s.service.Login(r.Context(), email, password)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		}
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	}
	httputil.WriteSuccess(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// whoami handles GET /auth/whoami, returning the authenticated principal
func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.Principal(r.Context())
	if !ok {
		writeError(w, identity.NewError(identity.CodeUnauthenticated, "Could not validate credentials"))
		return
	}
	if err := authn.RequireActive(user); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// changePassword handles PUT /auth/password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.Principal(r.Context())
	if !ok {
		writeError(w, identity.NewError(identity.CodeUnauthenticated, "Could not validate credentials"))
		return
	}
	if err := authn.RequireActive(user); err != nil {
		writeError(w, err)
		return
	}

	var req changePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}

	if err := s.service.ChangePassword(r.Context(), user, req.CurrentPassword, req.Password, req.PasswordConfirm); err != nil {
		writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.PasswordChangesTotal.Inc()
	}
	observability.FromContext(r.Context()).WithField("user_id", user.ID).Info("password changed")
	httputil.WriteNoContent(w)
}
