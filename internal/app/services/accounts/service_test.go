package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/memory"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	tokens := auth.NewManager("test-secret", "curiobox", time.Hour, nil)
	return New(memory.New(), tokens, nil).WithBcryptCost(bcrypt.MinCost)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Nickname)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	session, err := svc.Login(ctx, "ALICE", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	claims, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, name := range []string{"ab", "has space", "way_too_long_username_for_this_store", "émile"} {
		_, err := svc.Register(ctx, name, "secret1", "")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat), name)
	}
	_, err := svc.Register(ctx, "bob", "12345", "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidFormat))

	_, err = svc.Register(ctx, "bob", "123456", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Bob", "123456", "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "carol", "secret1", "")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "carol", "secret1")
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	_, err = svc.Authenticate(ctx, session.Token)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidToken))
}

func TestBannedUserCannotLoginOrAct(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin, err := svc.EnsureAdmin(ctx, "root", "rootpass")
	require.NoError(t, err)
	u, err := svc.Register(ctx, "dave", "secret1", "")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "dave", "secret1")
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, admin.ID, u.ID, user.StatusBanned)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "dave", "secret1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	_, err = svc.Authenticate(ctx, session.Token)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.SetStatus(ctx, admin.ID, admin.ID, user.StatusBanned)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestProfileAndPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "erin", "secret1", "Erin")
	require.NoError(t, err)

	nick, avatar := "Erin the Collector", "/uploads/a.png"
	updated, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Nickname: &nick, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, nick, updated.Nickname)
	assert.Equal(t, avatar, updated.Avatar)

	err = svc.ChangePassword(ctx, u.ID, "nope", "newsecret")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	require.NoError(t, svc.ChangePassword(ctx, u.ID, "secret1", "newsecret"))

	_, err = svc.Login(ctx, "erin", "newsecret")
	require.NoError(t, err)
}

func TestEnsureAdminAndRoles(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "root", "rootpass")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	again, err := svc.EnsureAdmin(ctx, "root", "ignored")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	u, err := svc.Register(ctx, "frank", "secret1", "")
	require.NoError(t, err)
	promoted, err := svc.SetRole(ctx, admin.ID, u.ID, user.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	_, err = svc.SetRole(ctx, admin.ID, admin.ID, user.RoleUser)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	res, err := svc.List(ctx, user.Filter{Role: user.RoleAdmin}, page.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	_, err = svc.SetStatus(ctx, admin.ID, "missing", user.StatusBanned)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
