package authn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/credentials"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/tokens"
)

// mockStore implements identity.Store with overridable functions
type mockStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (*identity.User, error)
	createUserFn     func(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error)
	setPasswordFn    func(ctx context.Context, id int64, hashedPassword string) error
	touchLastLoginFn func(ctx context.Context, id int64) error
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return m.getUserByEmailFn(ctx, email)
}

func (m *mockStore) GetUser(ctx context.Context, ident identity.Identifier) (*identity.User, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) ListUsers(ctx context.Context, filter identity.UserFilter, page identity.Page) (int64, []identity.User, error) {
	return 0, nil, nil
}

func (m *mockStore) CreateUser(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error) {
	return m.createUserFn(ctx, email, hashedPassword, isActive, isAdmin)
}

func (m *mockStore) UpdateUser(ctx context.Context, id int64, update identity.UserUpdate) (*identity.User, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) SetUserPassword(ctx context.Context, id int64, hashedPassword string) error {
	return m.setPasswordFn(ctx, id, hashedPassword)
}

func (m *mockStore) TouchLastLogin(ctx context.Context, id int64) error {
	if m.touchLastLoginFn != nil {
		return m.touchLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockStore) GetGroup(ctx context.Context, ident identity.Identifier) (*identity.Group, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) ListGroups(ctx context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Group, error) {
	return 0, nil, nil
}

func (m *mockStore) CreateGroup(ctx context.Context, name string, permissionNames []string) (*identity.Group, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) UpdateGroup(ctx context.Context, id int64, update identity.GroupUpdate) (*identity.Group, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) GetGroupsByNames(ctx context.Context, names []string) ([]identity.Group, error) {
	return nil, nil
}

func (m *mockStore) GetPermission(ctx context.Context, ident identity.Identifier) (*identity.Permission, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) ListPermissions(ctx context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Permission, error) {
	return 0, nil, nil
}

func (m *mockStore) CreatePermission(ctx context.Context, name string) (*identity.Permission, error) {
	return nil, identity.NewError(identity.CodeNotFound, "not implemented")
}

func (m *mockStore) GetPermissionsByNames(ctx context.Context, names []string) ([]identity.Permission, error) {
	return nil, nil
}

func newTestService(t *testing.T, store identity.Store, hooks []Hook) *Service {
	t.Helper()
	issuer, err := tokens.NewIssuer("test-secret", "HS256", 30)
	require.NoError(t, err)
	return NewService(store, issuer, credentials.NewHasher(4), credentials.DefaultPolicy(), hooks, nil)
}

func activeUser(t *testing.T, password string) *identity.User {
	t.Helper()
	hash, err := credentials.NewHasher(4).Hash(password)
	require.NoError(t, err)
	return &identity.User{
		ID:             1,
		Email:          "alice@example.com",
		HashedPassword: hash,
		IsActive:       true,
	}
}

func TestRegisterValidatesPolicy(t *testing.T) {
	service := newTestService(t, &mockStore{}, nil)

	_, err := service.Register(context.Background(), "alice@example.com", "weak", "weak")
	require.Error(t, err)
	assert.Equal(t, identity.CodeInvalid, identity.CodeOf(err))
	assert.Equal(t, credentials.DefaultPasswordHelp, err.Error())
}

func TestRegisterRejectsMismatch(t *testing.T) {
	service := newTestService(t, &mockStore{}, nil)

	_, err := service.Register(context.Background(), "alice@example.com", "Passw0rd!", "Passw0rd?")
	require.Error(t, err)
	assert.Equal(t, identity.CodeInvalid, identity.CodeOf(err))
	assert.Equal(t, "Passwords do not match", err.Error())
}

func TestRegisterStoresHashAndFiresHooks(t *testing.T) {
	var storedHash string
	store := &mockStore{
		createUserFn: func(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error) {
			storedHash = hashedPassword
			assert.True(t, isActive)
			assert.False(t, isAdmin)
			return &identity.User{ID: 1, Email: email, HashedPassword: hashedPassword, IsActive: true}, nil
		},
	}

	hookFired := make(chan string, 1)
	hooks := []Hook{
		func(ctx context.Context, user *identity.User) error {
			hookFired <- user.Email
			return nil
		},
	}

	service := newTestService(t, store, hooks)
	user, err := service.Register(context.Background(), "alice@example.com", "Passw0rd!", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	// plaintext never reaches the store
	assert.NotEqual(t, "Passw0rd!", storedHash)
	assert.True(t, credentials.Verify("Passw0rd!", storedHash))

	select {
	case email := <-hookFired:
		assert.Equal(t, "alice@example.com", email)
	case <-time.After(2 * time.Second):
		t.Fatal("registration hook did not fire")
	}
}

func TestRegisterConflictPassesThrough(t *testing.T) {
	store := &mockStore{
		createUserFn: func(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error) {
			return nil, identity.NewError(identity.CodeConflict, "A user with this email is already registered")
		},
	}

	service := newTestService(t, store, nil)
	_, err := service.Register(context.Background(), "alice@example.com", "Passw0rd!", "Passw0rd!")
	require.Error(t, err)
	assert.True(t, identity.IsConflict(err))
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "Passw0rd!")
	touched := false
	store := &mockStore{
		getUserByEmailFn: func(ctx context.Context, email string) (*identity.User, error) {
			return user, nil
		},
		touchLastLoginFn: func(ctx context.Context, id int64) error {
			touched = true
			assert.Equal(t, user.ID, id)
			return nil
		},
	}

	service := newTestService(t, store, nil)
	token, err := service.Login(context.Background(), "alice@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, touched)

	resolved, err := service.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.Email, resolved.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	user := activeUser(t, "Passw0rd!")

	missingStore := &mockStore{
		getUserByEmailFn: func(ctx context.Context, email string) (*identity.User, error) {
			return nil, identity.Errorf(identity.CodeNotFound, "User with email '%s' not found", email)
		},
	}
	wrongPasswordStore := &mockStore{
		getUserByEmailFn: func(ctx context.Context, email string) (*identity.User, error) {
			return user, nil
		},
	}

	_, errMissing := newTestService(t, missingStore, nil).Login(context.Background(), "ghost@example.com", "Passw0rd!")
	_, errWrong := newTestService(t, wrongPasswordStore, nil).Login(context.Background(), "alice@example.com", "wrong")

	require.Error(t, errMissing)
	require.Error(t, errWrong)
	assert.Equal(t, errMissing.Error(), errWrong.Error())
	assert.Equal(t, "Incorrect email or password", errMissing.Error())
	assert.Equal(t, identity.CodeUnauthenticated, identity.CodeOf(errMissing))
	assert.Equal(t, identity.CodeUnauthenticated, identity.CodeOf(errWrong))
}

func TestLoginInactiveRevealedAfterPasswordProof(t *testing.T) {
	user := activeUser(t, "Passw0rd!")
	user.IsActive = false
	store := &mockStore{
		getUserByEmailFn: func(ctx context.Context, email string) (*identity.User, error) {
			return user, nil
		},
	}
	service := newTestService(t, store, nil)

	// wrong password on an inactive account stays a credential error
	_, err := service.Login(context.Background(), "alice@example.com", "wrong")
	assert.Equal(t, identity.CodeUnauthenticated, identity.CodeOf(err))

	_, err = service.Login(context.Background(), "alice@example.com", "Passw0rd!")
	require.Error(t, err)
	assert.Equal(t, identity.CodeInactive, identity.CodeOf(err))
	assert.Equal(t, "This account is not active - please contact an administrator", err.Error())
}

func TestResolveTokenFailures(t *testing.T) {
	store := &mockStore{
		getUserByEmailFn: func(ctx context.Context, email string) (*identity.User, error) {
			return nil, identity.Errorf(identity.CodeNotFound, "User with email '%s' not found", email)
		},
	}
	service := newTestService(t, store, nil)

	// malformed token
	_, err := service.ResolveToken(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, identity.CodeUnauthenticated, identity.CodeOf(err))
	assert.Equal(t, "Could not validate credentials", err.Error())

	// valid token whose subject no longer exists
	issuer, err := tokens.NewIssuer("test-secret", "HS256", 30)
	require.NoError(t, err)
	token, err := issuer.Issue("deleted@example.com")
	require.NoError(t, err)

	_, err = service.ResolveToken(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, "Could not validate credentials", err.Error())
}

func TestRequireActive(t *testing.T) {
	user := &identity.User{IsActive: true}
	assert.NoError(t, RequireActive(user))

	user.IsActive = false
	err := RequireActive(user)
	require.Error(t, err)
	assert.Equal(t, identity.CodeBadRequest, identity.CodeOf(err))
	assert.Equal(t, "Inactive user", err.Error())
}

func TestRequireAdmin(t *testing.T) {
	user := &identity.User{IsAdmin: true}
	assert.NoError(t, RequireAdmin(user))

	user.IsAdmin = false
	err := RequireAdmin(user)
	require.Error(t, err)
	assert.Equal(t, identity.CodeNotAdmin, identity.CodeOf(err))
	assert.Equal(t, "User is not admin", err.Error())
}

func TestChangePassword(t *testing.T) {
	user := activeUser(t, "Passw0rd!")

	tests := []struct {
		name     string
		current  string
		password string
		confirm  string
		wantCode identity.Code
		wantMsg  string
	}{
		{"weak new password", "Passw0rd!", "weak", "weak", identity.CodeInvalid, credentials.DefaultPasswordHelp},
		{"mismatch", "Passw0rd!", "N3wPassw0rd!", "N3wPassw0rd?", identity.CodeInvalid, "Passwords do not match"},
		{"reuse", "Passw0rd!", "Passw0rd!", "Passw0rd!", identity.CodeInvalid, "You cannot use your current password as your new password"},
		{"wrong current", "nope-wrong", "N3wPassw0rd!", "N3wPassw0rd!", identity.CodeBadRequest, "Existing password is incorrect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := false
			store := &mockStore{
				setPasswordFn: func(ctx context.Context, id int64, hashedPassword string) error {
					mutated = true
					return nil
				},
			}
			service := newTestService(t, store, nil)

			err := service.ChangePassword(context.Background(), user, tt.current, tt.password, tt.confirm)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, identity.CodeOf(err))
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.False(t, mutated, "failed change must not mutate state")
		})
	}
}

func TestChangePasswordSuccess(t *testing.T) {
	user := activeUser(t, "Passw0rd!")

	var storedHash string
	store := &mockStore{
		setPasswordFn: func(ctx context.Context, id int64, hashedPassword string) error {
			assert.Equal(t, user.ID, id)
			storedHash = hashedPassword
			return nil
		},
	}
	service := newTestService(t, store, nil)

	err := service.ChangePassword(context.Background(), user, "Passw0rd!", "N3wPassw0rd!", "N3wPassw0rd!")
	require.NoError(t, err)
	assert.True(t, credentials.Verify("N3wPassw0rd!", storedHash))
	assert.False(t, credentials.Verify("Passw0rd!", storedHash))
}
