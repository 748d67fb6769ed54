// Package authn implements the authentication flow: registration, the login
// state machine that turns (email, password) into a signed token, bearer
// token resolution, and self-service password changes.
package authn

import (
	"context"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/async"
	"github.com/platinummonkey/gatehouse/pkg/credentials"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/tokens"
)

const hookTimeout = 30 * time.Second

// Hook runs after a user row is committed during registration. Hooks are
// best-effort: they run detached from the request, in order, and failures
// are logged but never surfaced to the caller or rolled back.
type Hook func(ctx context.Context, user *identity.User) error

// Service implements the authentication flow over the identity store, the
// credential codec and the token issuer.
type Service struct {
	store  identity.Store
	issuer *tokens.Issuer
	hasher *credentials.Hasher
	policy *credentials.Policy
	hooks  []Hook
	logger *observability.Logger
}

// NewService creates an authentication service. The hook list is fixed at
// construction; there is no process-wide mutable registry.
func NewService(store identity.Store, issuer *tokens.Issuer, hasher *credentials.Hasher,
	policy *credentials.Policy, hooks []Hook, logger *observability.Logger) *Service {
	if policy == nil {
		policy = credentials.DefaultPolicy()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:  store,
		issuer: issuer,
		hasher: hasher,
		policy: policy,
		hooks:  hooks,
		logger: logger,
	}
}

// Register creates an active, non-admin user. The user row is committed
// before any hook fires; hook failures never roll it back.
func (s *Service) Register(ctx context.Context, email, password, passwordConfirm string) (*identity.User, error) {
	if err := s.policy.Validate(password); err != nil {
		return nil, identity.NewError(identity.CodeInvalid, err.Error())
	}
	if password != passwordConfirm {
		return nil, identity.NewError(identity.CodeInvalid, "Passwords do not match")
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, email, hashed, true, false)
	if err != nil {
		return nil, err
	}

	s.runHooks(user)

	return user, nil
}

// runHooks spawns the ordered hook chain detached from the request
func (s *Service) runHooks(user *identity.User) {
	if len(s.hooks) == 0 {
		return
	}
	hooks := s.hooks
	async.SafeGo(context.Background(), hookTimeout, "post-registration hooks", func(ctx context.Context) error {
		for _, hook := range hooks {
			if err := hook(ctx, user); err != nil {
				s.logger.WithError(err).WithField("email", user.Email).
					Warn("post-registration hook failed")
			}
		}
		return nil
	})
}

// Login authenticates email and password and mints a token with the email
// as subject. A missing user and a wrong password are indistinguishable to
// avoid user enumeration; inactivity is revealed only after the password has
// been proven correct.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			return "", identity.NewError(identity.CodeUnauthenticated, "Incorrect email or password")
		}
		return "", err
	}

	if !credentials.Verify(password, user.HashedPassword) {
		return "", identity.NewError(identity.CodeUnauthenticated, "Incorrect email or password")
	}

	if !user.IsActive {
		return "", identity.NewError(identity.CodeInactive,
			"This account is not active - please contact an administrator")
	}

	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return "", err
	}

	return s.issuer.Issue(user.Email)
}

// ResolveToken verifies a bearer token and resolves its subject to a user.
// Every failure (bad token, missing subject, deleted user) collapses to the
// same unauthenticated error.
func (s *Service) ResolveToken(ctx context.Context, token string) (*identity.User, error) {
	credentialsErr := identity.NewError(identity.CodeUnauthenticated, "Could not validate credentials")

	subject, err := s.issuer.Verify(token)
	if err != nil {
		return nil, credentialsErr
	}

	user, err := s.store.GetUserByEmail(ctx, subject)
	if err != nil {
		if identity.IsNotFound(err) {
			return nil, credentialsErr
		}
		return nil, err
	}

	return user, nil
}

// RequireActive gates a resolved principal on is_active. Reported as a 400,
// distinct from the 403 an inactive login attempt gets.
func RequireActive(user *identity.User) error {
	if !user.IsActive {
		return identity.NewError(identity.CodeBadRequest, "Inactive user")
	}
	return nil
}

// RequireAdmin gates a resolved principal on is_admin
func RequireAdmin(user *identity.User) error {
	if !user.IsAdmin {
		return identity.NewError(identity.CodeNotAdmin, "User is not admin")
	}
	return nil
}

// ChangePassword replaces the principal's password after proof of the
// current one. Reusing the current password is rejected; nothing mutates on
// any failure path. Previously issued tokens remain valid (stateless).
func (s *Service) ChangePassword(ctx context.Context, user *identity.User, currentPassword, password, passwordConfirm string) error {
	if err := s.policy.Validate(password); err != nil {
		return identity.NewError(identity.CodeInvalid, err.Error())
	}
	if password != passwordConfirm {
		return identity.NewError(identity.CodeInvalid, "Passwords do not match")
	}
	if currentPassword == password {
		return identity.NewError(identity.CodeInvalid,
			"You cannot use your current password as your new password")
	}

	if !credentials.Verify(currentPassword, user.HashedPassword) {
		return identity.NewError(identity.CodeBadRequest, "Existing password is incorrect")
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	return s.store.SetUserPassword(ctx, user.ID, hashed)
}
