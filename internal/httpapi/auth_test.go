package httpapi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	auth, err := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour)
	require.NoError(t, err)
	return auth
}

func TestNewAuthManagerRequiresSecret(t *testing.T) {
	_, err := NewAuthManager("   ", time.Hour)
	assert.Error(t, err)
}

func TestAddUserHashesPlainPassword(t *testing.T) {
	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("Admin", "s3cret-pass", domain.RoleAdmin))

	cred := auth.users["admin"]
	assert.True(t, strings.HasPrefix(cred.password, "$2"), "stored password should be a bcrypt hash")
	assert.NotEqual(t, "s3cret-pass", cred.password)
	assert.NotEmpty(t, cred.id)
}

func TestAddUserRejectsBadInput(t *testing.T) {
	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("kasir", mustHashPassword(t, "pass1234"), domain.RoleCashier))

	assert.Error(t, auth.AddUser("kasir", "another", domain.RoleCashier), "duplicate username")
	assert.Error(t, auth.AddUser("has space", "pass1234", domain.RoleCashier))
	assert.Error(t, auth.AddUser("manager", "pass1234", "manager"))
	assert.Error(t, auth.AddUser("empty", " ", domain.RoleCashier))
}

func TestLoginIssuesTokenCarryingActor(t *testing.T) {
	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("kasir", mustHashPassword(t, "pass1234"), domain.RoleCashier))

	resp, err := auth.Login(domain.LoginRequest{Username: " KASIR ", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCashier, resp.Role)

	actor, err := auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "kasir", actor.Username)
	assert.Equal(t, domain.RoleCashier, actor.Role)
	assert.Equal(t, auth.users["kasir"].id, actor.ID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("kasir", mustHashPassword(t, "pass1234"), domain.RoleCashier))

	_, err := auth.Login(domain.LoginRequest{Username: "kasir", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(domain.LoginRequest{Username: "ghost", Password: "pass1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("kasir", mustHashPassword(t, "pass1234"), domain.RoleCashier))

	auth.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	old, err := auth.Login(domain.LoginRequest{Username: "kasir", Password: "pass1234"})
	require.NoError(t, err)
	auth.now = func() time.Time { return time.Now().UTC() }

	_, err = auth.ParseToken(old.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewAuthManager("a-completely-different-signing-secret", time.Hour)
	require.NoError(t, err)
	require.NoError(t, other.AddUser("kasir", mustHashPassword(t, "pass1234"), domain.RoleCashier))
	foreign, err := other.Login(domain.LoginRequest{Username: "kasir", Password: "pass1234"})
	require.NoError(t, err)

	_, err = auth.ParseToken(foreign.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsMalformedUserID(t *testing.T) {
	auth := newTestAuth(t)
	token, err := auth.sign("kasir", credential{id: "42", role: domain.RoleCashier}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
